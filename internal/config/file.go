package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the settings file looked up in every configuration directory.
const FileName = "provision.yaml"

// PubkeysDir is the directory of public keys in a configuration directory.
const PubkeysDir = "pubkeys"

// File is the schema of provision.yaml. Unset fields leave earlier values alone.
type File struct {
	Defaults                Defaults          `yaml:"defaults"`
	Images                  map[string]string `yaml:"images"`
	BootstrappedImages      *[]string         `yaml:"bootstrapped_images"`
	DefaultBundles          *[]string         `yaml:"default_bundles"`
	DefaultBootstrapBundles *[]string         `yaml:"default_bootstrap_bundles"`
	Vars                    map[string]string `yaml:"vars"`
	Bundles                 []BundleSpec      `yaml:"bundles"`
}

// Defaults holds the scalar settings of provision.yaml.
type Defaults struct {
	Provider            *string           `yaml:"provider"`
	Token               *string           `yaml:"token"`
	Image               *string           `yaml:"image"`
	Location            *int              `yaml:"location"`
	Size                *int              `yaml:"size"`
	NamePrefix          *string           `yaml:"name_prefix"`
	DestroyablePrefixes *[]string         `yaml:"destroyable_prefixes"`
	TargetDir           *string           `yaml:"target_dir"`
	PublicKey           *string           `yaml:"public_key"`
	UserData            *string           `yaml:"user_data"`
	SSH                 *SSHSettings      `yaml:"ssh"`
	Metadata            *MetadataSettings `yaml:"metadata"`
}

// BundleSpec declares a bundle. Script names are looked up in ScriptsDir and
// file basenames in FilesDir, both relative to the configuration directory.
type BundleSpec struct {
	Name       string   `yaml:"name"`
	Scripts    []string `yaml:"scripts"`
	Files      []string `yaml:"files"`
	ScriptsDir string   `yaml:"scripts_dir"`
	FilesDir   string   `yaml:"files_dir"`
	TargetDir  string   `yaml:"target_dir"`
}

// ReadFile parses a provision.yaml file. Unknown keys are rejected.
func ReadFile(path string) (*File, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i, b := range f.Bundles {
		if b.Name == "" {
			return nil, fmt.Errorf("%s: bundle %d has no name", path, i)
		}
	}
	return &f, nil
}
