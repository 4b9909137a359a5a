package node

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/provision/internal/config"
	"github.com/imamik/provision/internal/image"
	"github.com/imamik/provision/internal/meta"
	"github.com/imamik/provision/internal/plan"
	hcloudplatform "github.com/imamik/provision/internal/platform/hcloud"
	"github.com/imamik/provision/internal/platform/ssh"
	"github.com/imamik/provision/internal/util/labels"
	"github.com/imamik/provision/internal/util/logging"
	"github.com/imamik/provision/internal/util/naming"
	"github.com/imamik/provision/internal/util/retry"
)

const (
	authorizedKeysPath = ".ssh/authorized_keys"
	scriptMode         = 0o700
)

// Observer is told about finished operations. It is used for run metrics.
type Observer interface {
	DeployFinished(elapsed time.Duration, err error)
	ScriptFinished(script string, exitStatus int)
	DestroyFinished(node string, destroyed bool, err error)
}

type nopObserver struct{}

func (nopObserver) DeployFinished(time.Duration, error) {}
func (nopObserver) ScriptFinished(string, int)          {}
func (nopObserver) DestroyFinished(string, bool, error) {}

// SSHCredentials is the login used once a node is up.
type SSHCredentials struct {
	User string
	// PrivateKey is used when provider SSH keys were attached to the server.
	PrivateKey []byte
}

// DeployOptions selects what to create.
type DeployOptions struct {
	// LocationIndex and SizeIndex index into the provider's location and
	// server type lists, ordered by ID.
	LocationIndex int
	SizeIndex     int
	// ImageName is matched against image names with the image package.
	ImageName string
	// SSHKeyNames are provider SSH keys to attach. Without any, the node
	// is reached with the root password returned on creation.
	SSHKeyNames []string
	UserData    string
	// Destroyable marks the node destroyable regardless of its name.
	Destroyable bool
}

// Driver deploys, destroys and lists nodes on one provider.
type Driver struct {
	provider  hcloudplatform.Provider
	connector Connector
	store     meta.Store
	observer  Observer
	timeouts  *config.Timeouts
	creds     SSHCredentials
	prefixes  []string
	readFile  func(string) ([]byte, fs.FileMode, error)
	log       logr.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithConnector replaces the SSH connector.
func WithConnector(c Connector) Option {
	return func(d *Driver) {
		d.connector = c
	}
}

// WithStore keeps destroyability records in s. Without a store, nodes are
// destroyable when their name carries a destroyable prefix.
func WithStore(s meta.Store) Option {
	return func(d *Driver) {
		d.store = s
	}
}

// WithObserver reports finished operations to o.
func WithObserver(o Observer) Option {
	return func(d *Driver) {
		d.observer = o
	}
}

// WithTimeouts sets polling and retry limits.
func WithTimeouts(t *config.Timeouts) Option {
	return func(d *Driver) {
		d.timeouts = t
	}
}

// WithCredentials sets the SSH login.
func WithCredentials(c SSHCredentials) Option {
	return func(d *Driver) {
		d.creds = c
	}
}

// WithDestroyablePrefixes sets the name prefixes that allow destruction.
func WithDestroyablePrefixes(prefixes []string) Option {
	return func(d *Driver) {
		d.prefixes = prefixes
	}
}

// WithLocalFiles replaces how uploaded files are read.
func WithLocalFiles(read func(path string) ([]byte, fs.FileMode, error)) Option {
	return func(d *Driver) {
		d.readFile = read
	}
}

// NewDriver returns a driver for provider.
func NewDriver(provider hcloudplatform.Provider, log logr.Logger, opts ...Option) *Driver {
	d := &Driver{
		provider: provider,
		observer: nopObserver{},
		timeouts: config.LoadTimeouts(),
		creds:    SSHCredentials{User: config.DefaultSSHUser},
		prefixes: []string{naming.DefaultPrefix},
		readFile: readLocalFile,
		log:      log,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.connector == nil {
		d.connector = NewSSHConnector(d.timeouts, log)
	}
	return d
}

func readLocalFile(path string) ([]byte, fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return data, info.Mode().Perm(), nil
}

// Deploy creates a node and runs p on it. The returned descriptor carries
// the results of every script.
func (d *Driver) Deploy(ctx context.Context, p *plan.Plan, opts DeployOptions) (desc *Descriptor, err error) {
	start := time.Now()
	defer func() { d.observer.DeployFinished(time.Since(start), err) }()

	log := d.log.WithValues("node", p.NodeName)

	createOpts, err := d.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	createOpts.Name = p.NodeName
	createOpts.Labels = labels.NewLabelBuilder(p.NodeName).WithDestroyable(opts.Destroyable).Build()

	log.V(logging.Debug).Info("creating server",
		"location", createOpts.Location.Name,
		"size", createOpts.ServerType.Name,
		"image", hcloudplatform.ImageName(createOpts.Image))
	created, err := d.provider.CreateServer(ctx, createOpts)
	if err != nil {
		return nil, err
	}
	log.Info("server created", "id", created.Server.ID)

	d.saveRecord(ctx, log, p.NodeName, opts, hcloudplatform.ImageName(createOpts.Image))

	server, err := d.waitUntilRunning(ctx, created.Server.ID)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", p.NodeName, err)
	}

	target := Target{Host: hcloudplatform.ServerIPv4(server), User: d.creds.User}
	if len(opts.SSHKeyNames) > 0 && len(d.creds.PrivateKey) > 0 {
		target.PrivateKey = d.creds.PrivateKey
	} else {
		target.Password = created.RootPassword
	}
	if target.PrivateKey == nil && target.Password == "" {
		return nil, fmt.Errorf("node %s: no private key configured and no root password returned", p.NodeName)
	}

	scripts, err := d.runSteps(ctx, log, target, p)
	if err != nil {
		return nil, err
	}

	result := describe(server)
	if server.Image == nil {
		result.ImageID = fmt.Sprint(createOpts.Image.ID)
		result.ImageName = hcloudplatform.ImageName(createOpts.Image)
	}
	result.Scripts = scripts
	return &result, nil
}

// resolve picks location, size and image from the provider catalogue.
func (d *Driver) resolve(ctx context.Context, opts DeployOptions) (hcloudplatform.ServerCreateOpts, error) {
	var out hcloudplatform.ServerCreateOpts

	locations, err := d.provider.ListLocations(ctx)
	if err != nil {
		return out, err
	}
	if opts.LocationIndex < 0 || opts.LocationIndex >= len(locations) {
		return out, fmt.Errorf("location index %d out of range, %d locations available", opts.LocationIndex, len(locations))
	}

	types, err := d.provider.ListServerTypes(ctx)
	if err != nil {
		return out, err
	}
	if opts.SizeIndex < 0 || opts.SizeIndex >= len(types) {
		return out, fmt.Errorf("size index %d out of range, %d sizes available", opts.SizeIndex, len(types))
	}

	images, err := d.provider.ListImages(ctx)
	if err != nil {
		return out, err
	}
	st := types[opts.SizeIndex]
	img, err := image.Resolve(opts.ImageName, hcloudplatform.ImagesFor(images, st), hcloudplatform.ImageName)
	if err != nil {
		return out, err
	}

	out.Location = locations[opts.LocationIndex]
	out.ServerType = st
	out.Image = img
	out.SSHKeys = opts.SSHKeyNames
	out.UserData = opts.UserData
	return out, nil
}

func (d *Driver) saveRecord(ctx context.Context, log logr.Logger, name string, opts DeployOptions, imageName string) {
	if d.store == nil {
		return
	}
	destroyable := opts.Destroyable || naming.IsDestroyable(name, d.prefixes)
	if err := d.store.Save(ctx, name, meta.NewRecord(destroyable, imageName)); err != nil {
		logging.Warn(log, "failed to save destroyability record, node will not be destroyable", "error", err.Error())
	}
}

// waitUntilRunning polls until the server runs and has a public IPv4 address.
func (d *Driver) waitUntilRunning(ctx context.Context, id int64) (*hcloud.Server, error) {
	var server *hcloud.Server
	err := retry.Poll(ctx, d.timeouts.PollInterval, d.timeouts.Provision, func(ctx context.Context) (bool, error) {
		s, err := d.provider.GetServerByID(ctx, id)
		if err != nil {
			return false, err
		}
		if s == nil {
			return false, fmt.Errorf("server %d disappeared while waiting for it", id)
		}
		server = s
		return s.Status == hcloud.ServerStatusRunning && hcloudplatform.ServerIPv4(s) != "", nil
	})
	if errors.Is(err, retry.ErrPollTimeout) {
		return nil, fmt.Errorf("%w: %w", ErrProvisionTimeout, err)
	}
	return server, err
}

// errLocal marks step failures that repeating cannot fix.
type errLocal struct{ err error }

func (e errLocal) Error() string { return e.err.Error() }
func (e errLocal) Unwrap() error { return e.err }

// runSteps runs the whole plan over one session, repeating it from the
// start when the transport fails.
func (d *Driver) runSteps(ctx context.Context, log logr.Logger, target Target, p *plan.Plan) ([]ScriptResult, error) {
	tries := max(d.timeouts.StepBatchTries, 1)
	var lastErr error

	for try := 1; try <= tries; try++ {
		session, err := d.connector.Connect(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", p.NodeName, err)
		}

		log.V(logging.Debug).Info("running deployment steps", "steps", len(p.Steps), "try", try)
		scripts, err := d.runBatch(ctx, session, p)
		_ = session.Close()
		if err == nil {
			return scripts, nil
		}

		var local errLocal
		if errors.As(err, &local) || ctx.Err() != nil {
			return nil, fmt.Errorf("node %s: %w", p.NodeName, err)
		}
		lastErr = err
		logging.Warn(log, "deployment step batch failed", "try", try, "error", err.Error())

		if try < tries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.timeouts.StepBatchDelay):
			}
		}
	}

	return nil, &StepBatchError{Node: p.NodeName, Tries: tries, Err: lastErr}
}

func (d *Driver) runBatch(ctx context.Context, session Session, p *plan.Plan) ([]ScriptResult, error) {
	var scripts []ScriptResult

	for _, step := range p.Steps {
		switch step.Kind {
		case plan.InstallKeys:
			if err := session.Put(ctx, authorizedKeysPath, []byte(step.Content), 0o600, true); err != nil {
				return nil, err
			}

		case plan.UploadFile:
			data, mode, err := d.readFile(step.Source)
			if err != nil {
				return nil, errLocal{fmt.Errorf("failed to read %s: %w", step.Source, err)}
			}
			if err := session.Put(ctx, step.Target, data, mode, false); err != nil {
				return nil, err
			}

		case plan.RunScript:
			if err := session.Put(ctx, step.Target, []byte(step.Content), scriptMode, false); err != nil {
				return nil, err
			}
			res, err := session.Run(ctx, ssh.Quote(step.Target))
			if err != nil {
				return nil, err
			}
			scripts = append(scripts, ScriptResult{
				Path:       step.Target,
				Script:     step.Content,
				ExitStatus: res.ExitStatus,
				Stdout:     res.Stdout,
				Stderr:     res.Stderr,
			})

		default:
			return nil, errLocal{fmt.Errorf("unknown step kind %s", step.Kind)}
		}
	}

	for _, s := range scripts {
		d.observer.ScriptFinished(s.Path, s.ExitStatus)
	}
	return scripts, nil
}

// Destroy destroys every live node named name. It reports false without
// touching any server when the name is not destroyable or nothing matches.
func (d *Driver) Destroy(ctx context.Context, name string) (destroyed bool, err error) {
	defer func() { d.observer.DestroyFinished(name, destroyed, err) }()

	log := d.log.WithValues("node", name)

	servers, err := d.provider.ListServers(ctx)
	if err != nil {
		return false, err
	}
	var matches []*hcloud.Server
	for _, s := range servers {
		if s.Name == name && !terminated(s) {
			matches = append(matches, s)
		}
	}
	if len(matches) == 0 {
		logging.Warn(log, "no node with this name")
		return false, nil
	}

	if !d.destroyable(ctx, log, name) {
		log.Error(nil, "node is not destroyable")
		return false, nil
	}

	var errs []error
	for _, s := range matches {
		log.Info("destroying node", "id", s.ID)
		if err := d.provider.DeleteServer(ctx, s.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}

	if d.store != nil {
		if err := d.store.Delete(ctx, name); err != nil {
			logging.Warn(log, "failed to delete destroyability record", "error", err.Error())
		}
	}
	return true, nil
}

func (d *Driver) destroyable(ctx context.Context, log logr.Logger, name string) bool {
	if d.store == nil {
		return naming.IsDestroyable(name, d.prefixes)
	}
	ok, err := d.store.Destroyable(ctx, name)
	if err != nil {
		logging.Warn(log, "destroyability record unavailable, keeping node", "error", err.Error())
		return false
	}
	return ok
}

// List returns every node that is not being deleted.
func (d *Driver) List(ctx context.Context) ([]Descriptor, error) {
	servers, err := d.provider.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(servers))
	for _, s := range servers {
		if terminated(s) {
			continue
		}
		out = append(out, describe(s))
	}
	return out, nil
}

func terminated(s *hcloud.Server) bool {
	return s.Status == hcloud.ServerStatusDeleting
}
