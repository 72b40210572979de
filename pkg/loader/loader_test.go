package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/claphost/pkg/clap"
)

func TestStatic(t *testing.T) {
	entry := &clap.PluginEntry{Version: clap.CurrentVersion}
	s := NewStatic().Register("builtin:a", entry).Register("builtin:b", entry)

	got, err := s.Load("builtin:a")
	require.NoError(t, err)
	assert.Same(t, entry, got)
	assert.Equal(t, []string{"builtin:a", "builtin:b"}, s.Paths())

	_, err = s.Load("missing")
	assert.ErrorIs(t, err, clap.ErrLoad)
}

func TestChain(t *testing.T) {
	entry := &clap.PluginEntry{}
	failing := Func(func(string) (*clap.PluginEntry, error) {
		return nil, clap.NewError(clap.ErrLoad, "dlopen")
	})

	got, err := Chain{failing, NewStatic().Register("p", entry)}.Load("p")
	require.NoError(t, err)
	assert.Same(t, entry, got)

	_, err = Chain{failing}.Load("p")
	var ce *clap.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "dlopen", ce.Op)

	_, err = Chain{}.Load("p")
	assert.ErrorIs(t, err, clap.ErrLoad)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	bundle := filepath.Join(root, "Synth.clap", "Contents")
	require.NoError(t, os.MkdirAll(bundle, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "inner.clap"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "gain.CLAP"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), nil, 0o644))

	found, err := Discover([]string{root, filepath.Join(root, "missing")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "Synth.clap"),
		filepath.Join(root, "vendor", "gain.CLAP"),
	}, found)
}
