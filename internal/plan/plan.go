package plan

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/imamik/provision/internal/bundle"
	"github.com/imamik/provision/internal/template"
	"github.com/imamik/provision/internal/util/logging"
)

// NodeNameVar is the substitution variable carrying the node name.
const NodeNameVar = "node_name"

// Kind identifies what a step does on the node.
type Kind int

const (
	// InstallKeys appends public keys to the root account's authorized keys.
	InstallKeys Kind = iota
	// UploadFile copies a local file to the node.
	UploadFile
	// RunScript uploads rendered script text and executes it.
	RunScript
)

func (k Kind) String() string {
	switch k {
	case InstallKeys:
		return "install-keys"
	case UploadFile:
		return "upload-file"
	case RunScript:
		return "run-script"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Step is a single installation step.
//
// Content holds the key payload for InstallKeys and the rendered script for
// RunScript. Source is the local path for UploadFile.
type Step struct {
	Kind    Kind
	Target  string
	Source  string
	Content string
}

// Plan is the ordered list of steps for one node.
type Plan struct {
	NodeName string
	Steps    []Step
}

// Scripts returns the run-script steps in execution order.
func (p *Plan) Scripts() []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Kind == RunScript {
			out = append(out, s)
		}
	}
	return out
}

// Request describes what to install on a node.
type Request struct {
	NodeName string
	// Defaults are installed before Bundles.
	Defaults   []string
	Bundles    []string
	PublicKeys []string
	Vars       *template.Vars
	// Overrides are applied after node_name and win over it.
	Overrides map[string]string
}

// Planner builds plans from registered bundles.
type Planner struct {
	registry *bundle.Registry
	readFile func(string) ([]byte, error)
	log      logr.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithReadFile replaces the function used to read script sources.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(p *Planner) {
		p.readFile = fn
	}
}

// NewPlanner returns a planner resolving bundles through registry.
func NewPlanner(registry *bundle.Registry, log logr.Logger, opts ...Option) *Planner {
	p := &Planner{
		registry: registry,
		readFile: os.ReadFile,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan resolves, merges and renders the requested bundles. No partial plan is
// returned on error.
func (p *Planner) Plan(req Request) (*Plan, error) {
	names := make([]string, 0, len(req.Defaults)+len(req.Bundles))
	names = append(names, req.Defaults...)
	names = append(names, req.Bundles...)

	bundles := make([]*bundle.Bundle, 0, len(names))
	for _, name := range names {
		b, err := p.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}

	files := map[string]string{}
	var scripts []bundle.Entry
	slots := map[string]int{}
	for _, b := range bundles {
		p.log.V(logging.Debug).Info("merging bundle", "bundle", b.Name())
		for target, source := range b.Files() {
			if _, ok := files[target]; ok {
				logging.Warn(p.log, "overwriting file", "target", target, "bundle", b.Name())
			}
			files[target] = source
		}
		for _, e := range b.Scripts() {
			if i, ok := slots[e.Target]; ok {
				logging.Warn(p.log, "overwriting script", "target", e.Target, "bundle", b.Name())
				scripts[i] = e
				continue
			}
			slots[e.Target] = len(scripts)
			scripts = append(scripts, e)
		}
	}

	vars := template.NewVars(p.log)
	if req.Vars != nil {
		vars = req.Vars.Clone()
	}
	if old, ok := vars.Get(NodeNameVar); ok && old != req.NodeName {
		logging.Warn(p.log, "node name replaces configured substitution variable", "key", NodeNameVar, "old", old)
	}
	values := vars.Map()
	values[NodeNameVar] = req.NodeName
	for k, v := range req.Overrides {
		values[k] = v
	}

	steps := make([]Step, 0, 1+len(files)+len(scripts))
	steps = append(steps, Step{Kind: InstallKeys, Content: joinKeys(req.PublicKeys)})

	targets := make([]string, 0, len(files))
	for target := range files {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	for _, target := range targets {
		steps = append(steps, Step{Kind: UploadFile, Target: target, Source: files[target]})
	}

	for _, e := range scripts {
		raw, err := p.readFile(e.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to read script %s: %w", e.Source, err)
		}
		rendered, err := template.Render(string(raw), values)
		if err != nil {
			return nil, fmt.Errorf("failed to render script %s: %w", e.Source, err)
		}
		steps = append(steps, Step{Kind: RunScript, Target: e.Target, Source: e.Source, Content: rendered})
	}

	p.log.V(logging.Debug).Info("planned deployment",
		"node", req.NodeName, "bundles", names, "files", len(files), "scripts", len(scripts))

	return &Plan{NodeName: req.NodeName, Steps: steps}, nil
}

// joinKeys concatenates keys, making sure each one ends its own line.
func joinKeys(keys []string) string {
	var b strings.Builder
	for _, k := range keys {
		if k == "" {
			continue
		}
		b.WriteString(k)
		if !strings.HasSuffix(k, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
