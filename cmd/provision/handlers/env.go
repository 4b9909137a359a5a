package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-logr/logr"

	"github.com/imamik/provision/internal/config"
	"github.com/imamik/provision/internal/meta"
	"github.com/imamik/provision/internal/metrics"
	"github.com/imamik/provision/internal/node"
	"github.com/imamik/provision/internal/plan"
	hcloudplatform "github.com/imamik/provision/internal/platform/hcloud"
	"github.com/imamik/provision/internal/util/logging"
)

// Global holds the flags shared by every command.
type Global struct {
	ConfigDirs []string
	// Provider overrides the configured provider when set.
	Provider string
	// Token overrides the configured API token when set.
	Token       string
	Verbosity   int
	MetricsFile string
	// Version is reported to the provider API.
	Version string
}

// NodeDriver is the part of node.Driver the handlers use.
type NodeDriver interface {
	Deploy(ctx context.Context, p *plan.Plan, opts node.DeployOptions) (*node.Descriptor, error)
	Destroy(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]node.Descriptor, error)
}

// ProviderFactory builds a provider client for an API token. The client's
// request metrics go to rec.
type ProviderFactory func(token string, timeouts *config.Timeouts, rec *metrics.Recorder, version string) hcloudplatform.Provider

// Factory function variables - can be replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	loadConfig = config.Load

	loadTimeouts = config.LoadTimeouts

	// providers maps provider names to client constructors.
	providers = map[string]ProviderFactory{
		config.DefaultProvider: func(token string, timeouts *config.Timeouts, rec *metrics.Recorder, version string) hcloudplatform.Provider {
			return hcloudplatform.NewRealClient(token,
				hcloudplatform.WithTimeouts(timeouts),
				hcloudplatform.WithInstrumentation(rec.Registry()),
				hcloudplatform.WithVersion(version))
		},
	}

	openStore = func(settings config.MetadataSettings, log logr.Logger) (meta.Store, error) {
		store, err := meta.Open(settings, log)
		if err != nil || store == nil {
			return nil, err
		}
		return store, nil
	}

	newDriver = func(provider hcloudplatform.Provider, log logr.Logger, opts ...node.Option) NodeDriver {
		return node.NewDriver(provider, log, opts...)
	}

	readFile = os.ReadFile
)

// environment is everything one command invocation works with.
type environment struct {
	cfg      *config.Context
	planner  *plan.Planner
	driver   NodeDriver
	recorder *metrics.Recorder
	log      logr.Logger
	global   Global
}

// setup loads configuration and builds the driver for the selected provider.
func setup(global Global) (*environment, error) {
	log := logging.New(stderr, global.Verbosity)

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	cfg, err := loadConfig(log, config.SearchPath(global.ConfigDirs), wd)
	if err != nil {
		return nil, err
	}
	settings := cfg.Settings

	providerName := settings.Provider
	if global.Provider != "" {
		providerName = global.Provider
	}
	factory, ok := providers[providerName]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q, available: %v", providerName, providerNames())
	}
	token := settings.Token
	if global.Token != "" {
		token = global.Token
	}
	if token == "" {
		return nil, fmt.Errorf("no API token for provider %s: use --token, $HCLOUD_TOKEN or defaults.token", providerName)
	}

	timeouts := loadTimeouts()
	recorder := metrics.New()
	provider := factory(token, timeouts, recorder, global.Version)

	opts := []node.Option{
		node.WithTimeouts(timeouts),
		node.WithObserver(recorder),
		node.WithDestroyablePrefixes(settings.DestroyablePrefixes),
	}

	creds := node.SSHCredentials{User: settings.SSH.User}
	if settings.SSH.KeyPath != "" {
		key, err := readFile(settings.SSH.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh private key: %w", err)
		}
		creds.PrivateKey = key
	}
	opts = append(opts, node.WithCredentials(creds))

	store, err := openStore(settings.Metadata, log)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, node.WithStore(store))
	} else {
		log.V(logging.Debug).Info("no metadata store configured, destroyability follows node names")
	}

	return &environment{
		cfg:      cfg,
		planner:  plan.NewPlanner(cfg.Registry, log),
		driver:   newDriver(provider, log, opts...),
		recorder: recorder,
		log:      log,
		global:   global,
	}, nil
}

// finish writes the run metrics when a metrics file was requested.
func (e *environment) finish() {
	if e.global.MetricsFile == "" {
		return
	}
	if err := e.recorder.WriteToTextfile(e.global.MetricsFile); err != nil {
		logging.Warn(e.log, "failed to write metrics", "path", e.global.MetricsFile, "error", err.Error())
	}
}

func providerNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
