// Package loader resolves plugin library paths to raw entry tables.
//
// Mapping shared objects into the process is left to an implementation of
// Loader supplied by the caller. Static serves entries built in-process.
package loader

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/justyntemme/claphost/pkg/clap"
)

// Extension is the file extension of plugin libraries and bundles.
const Extension = ".clap"

// Loader yields the entry table of the library at path. Failures are
// reported as clap.ErrLoad.
type Loader interface {
	Load(path string) (*clap.PluginEntry, error)
}

// Func adapts a function to the Loader interface.
type Func func(path string) (*clap.PluginEntry, error)

// Load calls f.
func (f Func) Load(path string) (*clap.PluginEntry, error) {
	return f(path)
}

// Static maps paths to entries that already live in the process.
type Static struct {
	mu      sync.RWMutex
	entries map[string]*clap.PluginEntry
}

// NewStatic returns an empty static loader.
func NewStatic() *Static {
	return &Static{entries: make(map[string]*clap.PluginEntry)}
}

// Register makes entry loadable under path, replacing any earlier entry.
func (s *Static) Register(path string, entry *clap.PluginEntry) *Static {
	s.mu.Lock()
	s.entries[path] = entry
	s.mu.Unlock()
	return s
}

// Paths returns the registered paths, sorted.
func (s *Static) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Load returns the entry registered under path.
func (s *Static) Load(path string) (*clap.PluginEntry, error) {
	s.mu.RLock()
	entry, ok := s.entries[path]
	s.mu.RUnlock()
	if !ok || entry == nil {
		return nil, clap.Errorf(clap.ErrLoad, "load", "no library registered at %q", path)
	}
	return entry, nil
}

// Chain tries each loader in turn and returns the first entry found. The
// error of the last loader is returned when none succeeds.
type Chain []Loader

// Load implements Loader.
func (c Chain) Load(path string) (*clap.PluginEntry, error) {
	err := error(clap.Errorf(clap.ErrLoad, "load", "no loader configured"))
	for _, l := range c {
		entry, lerr := l.Load(path)
		if lerr == nil {
			return entry, nil
		}
		err = lerr
	}
	return nil, err
}

// Discover walks the search directories and returns every plugin library
// path below them, sorted. Bundles are directories ending in Extension and
// are not descended into. Missing directories are skipped.
func Discover(dirs []string) ([]string, error) {
	var found []string
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !strings.EqualFold(filepath.Ext(path), Extension) {
				return nil
			}
			found = append(found, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		})
		if err != nil {
			return nil, clap.Errorf(clap.ErrLoad, "discover", "walk %s: %w", dir, err)
		}
	}
	sort.Strings(found)
	return found, nil
}
