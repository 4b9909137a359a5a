package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/imamik/provision/internal/bundle"
	"github.com/imamik/provision/internal/util/naming"
)

// Built-in defaults used before any configuration directory is read.
const (
	DefaultProvider      = "hcloud"
	DefaultImage         = "noble"
	DefaultPublicKeyPath = "~/.ssh/id_rsa.pub"
	DefaultSSHUser       = "root"
	DefaultMetadataKey   = "node-meta"
)

// SSHSettings configures how the tool logs in to new nodes.
type SSHSettings struct {
	User string `yaml:"user"`
	// KeyPath is the private key used when KeyNames are attached to the server.
	KeyPath string `yaml:"key_path"`
	// KeyNames are provider SSH keys attached at creation. Without them the
	// provider-generated root password is used.
	KeyNames []string `yaml:"key_names"`
}

// MetadataSettings points at the object storage bucket holding
// destroyability records.
type MetadataSettings struct {
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// Enabled reports whether a metadata store is configured.
func (m MetadataSettings) Enabled() bool {
	return m.Bucket != "" && m.Endpoint != ""
}

// Settings is the resolved configuration after all directories are applied.
type Settings struct {
	Provider            string
	Token               string
	Image               string
	Location            int
	Size                int
	NamePrefix          string
	DestroyablePrefixes []string
	TargetDir           string
	PublicKeyPath       string
	UserData            string
	SSH                 SSHSettings
	Metadata            MetadataSettings

	// Images maps an alias such as "noble" to a provider image name.
	Images map[string]string
	// BootstrappedImages lists aliases whose images already carry the base
	// tooling, so DefaultBundles apply instead of DefaultBootstrapBundles.
	BootstrappedImages      []string
	DefaultBundles          []string
	DefaultBootstrapBundles []string
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Provider:            DefaultProvider,
		Image:               DefaultImage,
		NamePrefix:          naming.DefaultPrefix,
		DestroyablePrefixes: []string{naming.DefaultPrefix},
		TargetDir:           bundle.DefaultTargetDir,
		PublicKeyPath:       DefaultPublicKeyPath,
		SSH:                 SSHSettings{User: DefaultSSHUser},
		Metadata:            MetadataSettings{Bucket: DefaultMetadataKey},
		Images: map[string]string{
			"noble":    "ubuntu-24.04",
			"jammy":    "ubuntu-22.04",
			"bookworm": "debian-12",
			"trixie":   "debian-13",
		},
	}
}

// ImageName maps an alias to the provider image name. Unknown aliases are
// used as image names directly.
func (s *Settings) ImageName(alias string) string {
	if name, ok := s.Images[alias]; ok {
		return name
	}
	return alias
}

// DefaultBundlesFor returns the bundles installed on every node using the
// given image alias.
func (s *Settings) DefaultBundlesFor(alias string) []string {
	if slices.Contains(s.BootstrappedImages, alias) {
		return slices.Clone(s.DefaultBundles)
	}
	return slices.Clone(s.DefaultBootstrapBundles)
}

// Validate checks the settings for values no command can work with.
func (s *Settings) Validate() error {
	var errs []error
	if s.Provider == "" {
		errs = append(errs, errors.New("provider is required"))
	}
	if s.Location < 0 {
		errs = append(errs, fmt.Errorf("location index must not be negative, got %d", s.Location))
	}
	if s.Size < 0 {
		errs = append(errs, fmt.Errorf("size index must not be negative, got %d", s.Size))
	}
	if s.TargetDir == "" {
		errs = append(errs, errors.New("target_dir must not be empty"))
	}
	if len(s.SSH.KeyNames) > 0 && s.SSH.KeyPath == "" {
		errs = append(errs, errors.New("ssh.key_path is required when ssh.key_names are set"))
	}
	if s.Metadata.Endpoint != "" && s.Metadata.Bucket == "" {
		errs = append(errs, errors.New("metadata.bucket is required when metadata.endpoint is set"))
	}
	return errors.Join(errs...)
}
