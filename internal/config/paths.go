package config

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeDirName is the per-user configuration directory below $HOME.
const HomeDirName = ".provision"

// HomeEnvVar names an extra configuration directory.
const HomeEnvVar = "PROVISION_HOME"

// NormalizePath cleans path and expands a leading ~. Relative paths are
// resolved against relativeTo.
func NormalizePath(path, relativeTo string) string {
	path = expandUser(filepath.Clean(path))
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(relativeTo, path)
}

func expandUser(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// SearchPath returns the configuration directories in load order: the
// per-user directory and $PROVISION_HOME when they exist, then extra.
func SearchPath(extra []string) []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, HomeDirName)
		if isDir(dir) {
			dirs = append(dirs, dir)
		}
	}
	if env := os.Getenv(HomeEnvVar); env != "" && isDir(expandUser(env)) {
		dirs = append(dirs, env)
	}
	return append(dirs, extra...)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
