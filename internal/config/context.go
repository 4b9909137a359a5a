package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-logr/logr"

	"github.com/imamik/provision/internal/bundle"
	"github.com/imamik/provision/internal/template"
	"github.com/imamik/provision/internal/util/logging"
)

// Context is the configuration shared by every command of one invocation.
type Context struct {
	Settings   Settings
	Registry   *bundle.Registry
	Vars       *template.Vars
	PublicKeys []string
	// Dirs lists the directories applied, in order.
	Dirs []string

	log    logr.Logger
	origin map[string]string
}

// New returns a context holding the built-in defaults.
func New(log logr.Logger) *Context {
	return &Context{
		Settings: DefaultSettings(),
		Registry: bundle.NewRegistry(log),
		Vars:     template.NewVars(log),
		log:      log,
		origin:   map[string]string{},
	}
}

// Load builds a context from dirs, each normalized against relativeTo, and
// validates the result.
func Load(log logr.Logger, dirs []string, relativeTo string) (*Context, error) {
	c := New(log)
	for _, dir := range dirs {
		if err := c.LoadDir(NormalizePath(dir, relativeTo)); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Logger returns the logger the context reports to.
func (c *Context) Logger() logr.Logger {
	return c.log
}

// LoadDir applies one configuration directory.
func (c *Context) LoadDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("configuration directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("configuration directory %s is not a directory", dir)
	}
	c.log.V(logging.Debug).Info("loading configuration directory", "dir", dir)
	c.Dirs = append(c.Dirs, dir)

	found := false
	keysDir := filepath.Join(dir, PubkeysDir)
	if isDir(keysDir) {
		found = true
		if err := c.loadPublicKeys(keysDir); err != nil {
			return err
		}
	}

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		found = true
		f, err := ReadFile(path)
		if err != nil {
			return err
		}
		c.apply(dir, f)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !found {
		logging.Warn(c.log, "configuration directory has neither pubkeys nor settings", "dir", dir)
	}
	return nil
}

func (c *Context) loadPublicKeys(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read public keys: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	c.log.V(logging.Debug).Info("loading authorized public keys", "dir", dir, "files", names)
	for _, name := range names {
		// #nosec G304
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read public key %s: %w", name, err)
		}
		c.PublicKeys = append(c.PublicKeys, string(data))
	}
	return nil
}

func (c *Context) apply(dir string, f *File) {
	d := f.Defaults
	s := &c.Settings
	override(c, dir, "provider", &s.Provider, d.Provider)
	override(c, dir, "token", &s.Token, d.Token)
	override(c, dir, "image", &s.Image, d.Image)
	override(c, dir, "location", &s.Location, d.Location)
	override(c, dir, "size", &s.Size, d.Size)
	override(c, dir, "name_prefix", &s.NamePrefix, d.NamePrefix)
	override(c, dir, "destroyable_prefixes", &s.DestroyablePrefixes, d.DestroyablePrefixes)
	override(c, dir, "target_dir", &s.TargetDir, d.TargetDir)
	override(c, dir, "user_data", &s.UserData, d.UserData)
	override(c, dir, "ssh", &s.SSH, d.SSH)
	override(c, dir, "metadata", &s.Metadata, d.Metadata)
	if d.PublicKey != nil {
		p := NormalizePath(*d.PublicKey, dir)
		override(c, dir, "public_key", &s.PublicKeyPath, &p)
	}
	if d.SSH != nil && s.SSH.KeyPath != "" {
		s.SSH.KeyPath = NormalizePath(s.SSH.KeyPath, dir)
	}
	if s.SSH.User == "" {
		s.SSH.User = DefaultSSHUser
	}

	aliases := make([]string, 0, len(f.Images))
	for alias := range f.Images {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		name := f.Images[alias]
		if old, ok := s.Images[alias]; ok && old != name {
			logging.Warn(c.log, "overriding image alias", "alias", alias, "old", old, "new", name, "dir", dir)
		}
		s.Images[alias] = name
	}

	override(c, dir, "bootstrapped_images", &s.BootstrappedImages, f.BootstrappedImages)
	override(c, dir, "default_bundles", &s.DefaultBundles, f.DefaultBundles)
	override(c, dir, "default_bootstrap_bundles", &s.DefaultBootstrapBundles, f.DefaultBootstrapBundles)

	c.Vars.Merge(f.Vars)

	for _, b := range f.Bundles {
		c.registerBundle(dir, b)
	}
}

func (c *Context) registerBundle(dir string, spec BundleSpec) {
	scriptsDir := spec.ScriptsDir
	if scriptsDir == "" {
		scriptsDir = "scripts"
	}
	filesDir := spec.FilesDir
	if filesDir == "" {
		filesDir = "files"
	}
	targetDir := spec.TargetDir
	if targetDir == "" {
		targetDir = c.Settings.TargetDir
	}
	c.Registry.Register(spec.Name,
		bundle.ScriptMap(spec.Scripts, NormalizePath(scriptsDir, dir), targetDir),
		bundle.FileMap(spec.Files, NormalizePath(filesDir, dir)))
}

// override replaces *dst with *src when src is set, warning when a previous
// directory already set the value.
func override[T any](c *Context, dir, key string, dst *T, src *T) {
	if src == nil {
		return
	}
	if prev, ok := c.origin[key]; ok {
		logging.Warn(c.log, "overriding configuration value", "key", key, "previous", prev, "dir", dir)
	}
	*dst = *src
	c.origin[key] = dir
}

// Validate checks the settings and that every default bundle is registered.
func (c *Context) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	for _, list := range [][]string{c.Settings.DefaultBundles, c.Settings.DefaultBootstrapBundles} {
		for _, name := range list {
			if _, err := c.Registry.Lookup(name); err != nil {
				return fmt.Errorf("configuration validation failed: default bundle: %w", err)
			}
		}
	}
	return nil
}

// AuthorizedKeys returns the keys installed on new nodes: the configured
// public key file first, then every key from the pubkeys directories. A
// missing public key file is logged and skipped.
func (c *Context) AuthorizedKeys() []string {
	var keys []string
	if c.Settings.PublicKeyPath != "" {
		path := NormalizePath(c.Settings.PublicKeyPath, ".")
		// #nosec G304
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Warn(c.log, "public key not readable", "path", path, "error", err.Error())
		} else {
			keys = append(keys, string(data))
		}
	}
	return append(keys, c.PublicKeys...)
}
