// Package host is the typed runtime around a raw plugin library: it opens
// libraries, enumerates their descriptors and drives plugin instances
// through their lifecycle.
package host

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/loader"
)

// PluginDescriptor is the immutable metadata of one plugin in a library.
type PluginDescriptor struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Vendor      string       `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Version     string       `json:"version,omitempty" yaml:"version,omitempty"`
	URL         string       `json:"url,omitempty" yaml:"url,omitempty"`
	ManualURL   string       `json:"manual_url,omitempty" yaml:"manual_url,omitempty"`
	SupportURL  string       `json:"support_url,omitempty" yaml:"support_url,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Features    []string     `json:"features,omitempty" yaml:"features,omitempty"`
	ABI         clap.Version `json:"-" yaml:"-"`
}

func descriptorFromRaw(d *clap.Descriptor) PluginDescriptor {
	return PluginDescriptor{
		ID:          d.ID,
		Name:        d.Name,
		Vendor:      d.Vendor,
		Version:     d.PluginVersion,
		URL:         d.URL,
		ManualURL:   d.ManualURL,
		SupportURL:  d.SupportURL,
		Description: d.Description,
		Features:    slices.Clone(d.Features),
		ABI:         d.Version,
	}
}

// HasFeature reports whether the descriptor carries the feature tag.
func (d PluginDescriptor) HasFeature(tag string) bool {
	return slices.Contains(d.Features, tag)
}

func (d PluginDescriptor) clone() PluginDescriptor {
	d.Features = slices.Clone(d.Features)
	return d
}

// Library is an opened plugin library. It must stay open for as long as any
// instance created from it is alive.
type Library struct {
	path    string
	entry   *clap.PluginEntry
	factory *clap.PluginFactory
	opts    options
	log     zerolog.Logger

	descriptors []PluginDescriptor

	mu     sync.Mutex
	live   int
	closed bool
}

// Open loads the library at path through l, checks its ABI version,
// initialises it and enumerates its plugins. Every failure is a load error.
func Open(ctx context.Context, l loader.Loader, path string, opts ...Option) (*Library, error) {
	if err := ctx.Err(); err != nil {
		return nil, clap.Errorf(clap.ErrLoad, "open", "%s: %w", path, err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With().Str("library", path).Logger()

	entry, err := l.Load(path)
	if err != nil {
		if errors.Is(err, clap.ErrLoad) {
			return nil, err
		}
		return nil, clap.Errorf(clap.ErrLoad, "open", "%s: %w", path, err)
	}
	if entry == nil {
		return nil, clap.Errorf(clap.ErrLoad, "open", "%s: loader returned no entry", path)
	}
	if !entry.Version.Compatible() {
		return nil, clap.Errorf(clap.ErrLoad, "open", "%s: incompatible ABI version %s", path, entry.Version)
	}
	if entry.Init == nil || entry.GetFactory == nil {
		return nil, clap.Errorf(clap.ErrLoad, "open", "%s: entry is missing init or get_factory", path)
	}

	lib := &Library{path: path, entry: entry, opts: o, log: log}
	var ok bool
	if err := guarded("entry.init", func() { ok = entry.Init(path) }); err != nil {
		return nil, clap.Errorf(clap.ErrLoad, "open", "%s: %w", path, err)
	}
	if !ok {
		return nil, clap.Errorf(clap.ErrLoad, "open", "%s: entry init failed", path)
	}

	if err := lib.resolve(); err != nil {
		lib.deinit()
		return nil, clap.Errorf(clap.ErrLoad, "open", "%s: %w", path, err)
	}
	log.Debug().Int("plugins", len(lib.descriptors)).Msg("library opened")
	return lib, nil
}

// resolve finds the plugin factory and snapshots the descriptors.
func (lib *Library) resolve() error {
	var raw any
	if err := guarded("entry.get_factory", func() { raw = lib.entry.GetFactory(clap.PluginFactoryID) }); err != nil {
		return err
	}
	factory, ok := raw.(*clap.PluginFactory)
	if !ok || factory == nil {
		return errors.New("library has no plugin factory")
	}
	if factory.GetPluginCount == nil || factory.GetPluginDescriptor == nil || factory.CreatePlugin == nil {
		return errors.New("plugin factory is incomplete")
	}
	lib.factory = factory

	return guarded("factory.enumerate", func() {
		n := factory.GetPluginCount()
		seen := make(map[string]bool, n)
		for i := uint32(0); i < n; i++ {
			d := factory.GetPluginDescriptor(i)
			switch {
			case d == nil || d.ID == "":
				lib.log.Warn().Uint32("index", i).Msg("skipping descriptor without id")
				continue
			case seen[d.ID]:
				lib.log.Warn().Str("plugin", d.ID).Msg("skipping duplicate descriptor")
				continue
			}
			seen[d.ID] = true
			lib.descriptors = append(lib.descriptors, descriptorFromRaw(d))
		}
	})
}

// Path returns the path the library was opened from.
func (lib *Library) Path() string {
	return lib.path
}

// Descriptors returns the plugins the library exposed when it was opened.
func (lib *Library) Descriptors() []PluginDescriptor {
	out := make([]PluginDescriptor, len(lib.descriptors))
	for i, d := range lib.descriptors {
		out[i] = d.clone()
	}
	return out
}

// Descriptor returns the descriptor with the given plugin id.
func (lib *Library) Descriptor(id string) (PluginDescriptor, bool) {
	for _, d := range lib.descriptors {
		if d.ID == id {
			return d.clone(), true
		}
	}
	return PluginDescriptor{}, false
}

// Live returns the number of instances that have not been destroyed.
func (lib *Library) Live() int {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.live
}

// NewInstance returns an instance of plugin id in the Loaded state. Options
// override the library's defaults for this instance only.
func (lib *Library) NewInstance(id string, opts ...Option) (*Instance, error) {
	desc, ok := lib.Descriptor(id)
	if !ok {
		return nil, clap.Errorf(clap.ErrInstantiation, "new_instance", "no plugin %q in %s", id, lib.path)
	}
	o := lib.opts
	for _, opt := range opts {
		opt(&o)
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()
	if lib.closed {
		return nil, clap.Errorf(clap.ErrInvalidState, "new_instance", "library %s is closed", lib.path)
	}
	lib.live++
	return newInstance(lib, desc, o), nil
}

// release is called once by every instance when it is destroyed.
func (lib *Library) release() {
	lib.mu.Lock()
	lib.live--
	lib.mu.Unlock()
}

// Close deinitialises the library. It fails while instances are alive and is
// a no-op once closed.
func (lib *Library) Close() error {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if lib.closed {
		return nil
	}
	if lib.live > 0 {
		return clap.Errorf(clap.ErrLibraryInUse, "close", "%d instances of %s still alive", lib.live, lib.path)
	}
	lib.closed = true
	lib.deinit()
	lib.log.Debug().Msg("library closed")
	return nil
}

func (lib *Library) deinit() {
	if lib.entry.Deinit == nil {
		return
	}
	if err := guarded("entry.deinit", lib.entry.Deinit); err != nil {
		lib.log.Error().Err(err).Msg("library deinit failed")
	}
}

// guarded runs fn and turns a panic into an error.
func guarded(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: plugin panicked: %v", op, r)
		}
	}()
	fn()
	return nil
}
