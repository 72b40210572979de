package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/loader"
)

const fakeID = "test.fake"

// fakePlugin is a scriptable plugin table. Hooks left nil take the happy
// path.
type fakePlugin struct {
	host *clap.Host
	desc *clap.Descriptor
	exts map[string]any

	init     func() bool
	activate func(sr float64, min, max uint32) bool
	process  func(p *clap.Process) clap.ProcessStatus

	created     int
	destroyed   int
	activated   int
	deactivated int
	started     int
	stopped     int
	mainThread  int
}

func newFake() *fakePlugin {
	return &fakePlugin{
		desc: &clap.Descriptor{Version: clap.CurrentVersion, ID: fakeID, Name: "Fake"},
		exts: map[string]any{},
	}
}

func (f *fakePlugin) table() *clap.Plugin {
	return &clap.Plugin{
		Desc: f.desc,
		Init: func() bool {
			if f.init != nil {
				return f.init()
			}
			return true
		},
		Destroy: func() { f.destroyed++ },
		Activate: func(sr float64, min, max uint32) bool {
			f.activated++
			if f.activate != nil {
				return f.activate(sr, min, max)
			}
			return true
		},
		Deactivate:      func() { f.deactivated++ },
		StartProcessing: func() bool { f.started++; return true },
		StopProcessing:  func() { f.stopped++ },
		Reset:           func() {},
		Process: func(p *clap.Process) clap.ProcessStatus {
			if f.process != nil {
				return f.process(p)
			}
			return clap.ProcessContinue
		},
		GetExtension: func(id string) any { return f.exts[id] },
		OnMainThread: func() { f.mainThread++ },
	}
}

// fakeEntry exposes f under fakeID and counts init and deinit calls.
type fakeEntry struct {
	plugin  *fakePlugin
	inits   int
	deinits int
	entry   *clap.PluginEntry
}

func newFakeEntry(f *fakePlugin) *fakeEntry {
	fe := &fakeEntry{plugin: f}
	factory := &clap.PluginFactory{
		GetPluginCount: func() uint32 { return 1 },
		GetPluginDescriptor: func(i uint32) *clap.Descriptor {
			if i != 0 {
				return nil
			}
			return f.desc
		},
		CreatePlugin: func(host *clap.Host, id string) *clap.Plugin {
			if id != fakeID {
				return nil
			}
			f.host = host
			f.created++
			return f.table()
		},
	}
	fe.entry = &clap.PluginEntry{
		Version: clap.CurrentVersion,
		Init:    func(string) bool { fe.inits++; return true },
		Deinit:  func() { fe.deinits++ },
		GetFactory: func(id string) any {
			if id == clap.PluginFactoryID {
				return factory
			}
			return nil
		},
	}
	return fe
}

func openFake(t *testing.T, f *fakePlugin, opts ...Option) (*Library, *fakeEntry) {
	t.Helper()
	fe := newFakeEntry(f)
	lib, err := Open(context.Background(), loader.NewStatic().Register("fake", fe.entry), "fake", opts...)
	require.NoError(t, err)
	return lib, fe
}

func createFake(t *testing.T, f *fakePlugin, opts ...Option) *Instance {
	t.Helper()
	lib, _ := openFake(t, f, opts...)
	in, err := lib.NewInstance(fakeID)
	require.NoError(t, err)
	require.NoError(t, in.Create())
	return in
}
