package bundle

import (
	"path"
	"path/filepath"
)

// DefaultTargetDir is where scripts are placed on the node when a bundle
// does not say otherwise.
const DefaultTargetDir = "/root/deploy"

// Entry maps a path on the node to a local source path.
type Entry struct {
	Target string
	Source string
}

// Bundle is an immutable set of scripts and files.
type Bundle struct {
	name    string
	scripts []Entry
	files   map[string]string
}

// New creates a bundle. Scripts keep their order; a repeated script target
// keeps its first position and takes the later source.
func New(name string, scripts []Entry, files map[string]string) *Bundle {
	b := &Bundle{name: name, files: make(map[string]string, len(files))}
	index := make(map[string]int, len(scripts))
	for _, e := range scripts {
		if i, ok := index[e.Target]; ok {
			b.scripts[i].Source = e.Source
			continue
		}
		index[e.Target] = len(b.scripts)
		b.scripts = append(b.scripts, e)
	}
	for target, source := range files {
		b.files[target] = source
	}
	return b
}

// Name returns the bundle identifier.
func (b *Bundle) Name() string { return b.name }

// Scripts returns the script entries in execution order.
func (b *Bundle) Scripts() []Entry {
	out := make([]Entry, len(b.scripts))
	copy(out, b.scripts)
	return out
}

// Files returns the file mapping.
func (b *Bundle) Files() map[string]string {
	out := make(map[string]string, len(b.files))
	for k, v := range b.files {
		out[k] = v
	}
	return out
}

// ScriptMap places each script file from sourceDir into targetDir on the node,
// preserving the order of filenames.
func ScriptMap(filenames []string, sourceDir, targetDir string) []Entry {
	if targetDir == "" {
		targetDir = DefaultTargetDir
	}
	entries := make([]Entry, 0, len(filenames))
	for _, f := range filenames {
		entries = append(entries, Entry{
			Target: path.Join(targetDir, f),
			Source: filepath.Join(sourceDir, f),
		})
	}
	return entries
}

// FileMap maps absolute node paths to files of the same base name in filesDir.
func FileMap(targets []string, filesDir string) map[string]string {
	files := make(map[string]string, len(targets))
	for _, t := range targets {
		files[t] = filepath.Join(filesDir, path.Base(t))
	}
	return files
}
