// Package state stores plugin state blobs in a self-describing envelope so
// they can be written to disk and restored into a matching plugin later.
package state

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/ext"
	"github.com/justyntemme/claphost/pkg/host"
	"github.com/justyntemme/claphost/pkg/param"
)

// FormatVersion is the envelope version written by Marshal.
const FormatVersion = 1

// Snapshot is a plugin state blob plus what is needed to restore it.
type Snapshot struct {
	Format        uint               `cbor:"0,keyasint"`
	PluginID      string             `cbor:"1,keyasint"`
	PluginVersion string             `cbor:"2,keyasint,omitempty"`
	Context       string             `cbor:"3,keyasint"`
	Data          []byte             `cbor:"4,keyasint"`
	Saved         time.Time          `cbor:"5,keyasint"`
	Params        map[uint32]float64 `cbor:"6,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("state: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal encodes s as canonical CBOR. Equal snapshots encode to equal bytes.
func Marshal(s *Snapshot) ([]byte, error) {
	return encMode.Marshal(s)
}

// Unmarshal decodes a snapshot and rejects newer envelope versions.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, clap.Errorf(clap.ErrState, "state.unmarshal", "%w", err)
	}
	if s.Format == 0 || s.Format > FormatVersion {
		return nil, clap.Errorf(clap.ErrState, "state.unmarshal", "unsupported snapshot format %d", s.Format)
	}
	if s.PluginID == "" {
		return nil, clap.Errorf(clap.ErrState, "state.unmarshal", "snapshot has no plugin id")
	}
	return &s, nil
}

// Instance is what Capture and Restore need from a plugin instance.
// *host.Instance implements it.
type Instance interface {
	Descriptor() host.PluginDescriptor
	Extensions() (host.Extensions, error)
	Params() (*param.Registry, error)
}

// Capture saves the state of in for ctx. When the instance has a parameter
// registry its current values are recorded alongside the blob.
func Capture(in Instance, ctx ext.StateContext, now time.Time) (*Snapshot, error) {
	exts, err := in.Extensions()
	if err != nil {
		return nil, err
	}
	if exts.State == nil {
		return nil, clap.Errorf(clap.ErrState, "state.capture", "plugin %s has no state support", in.Descriptor().ID)
	}
	blob, err := exts.State.Save(ctx)
	if err != nil {
		return nil, err
	}
	desc := in.Descriptor()
	s := &Snapshot{
		Format:        FormatVersion,
		PluginID:      desc.ID,
		PluginVersion: desc.Version,
		Context:       ctx.String(),
		Data:          blob.Data,
		Saved:         now.UTC(),
	}
	if reg, err := in.Params(); err == nil {
		s.Params = paramValues(reg)
	}
	return s, nil
}

// paramValues reads every current parameter value. A stale registry yields
// nothing.
func paramValues(reg *param.Registry) map[uint32]float64 {
	infos, err := reg.All()
	if err != nil || len(infos) == 0 {
		return nil
	}
	values := make(map[uint32]float64, len(infos))
	for _, info := range infos {
		if v, err := reg.Value(info.ID); err == nil {
			values[info.ID] = v
		}
	}
	return values
}

// Restore loads s into in. The snapshot must come from the same plugin.
func Restore(in Instance, s *Snapshot) error {
	desc := in.Descriptor()
	if s.PluginID != desc.ID {
		return clap.Errorf(clap.ErrState, "state.restore", "snapshot of %s cannot be loaded into %s", s.PluginID, desc.ID)
	}
	ctx, err := ParseContext(s.Context)
	if err != nil {
		return err
	}
	exts, err := in.Extensions()
	if err != nil {
		return err
	}
	if exts.State == nil {
		return clap.Errorf(clap.ErrState, "state.restore", "plugin %s has no state support", desc.ID)
	}
	return exts.State.Load(ext.StateBlob{Data: s.Data, Context: ctx})
}

// ParseContext maps a context name back to its value.
func ParseContext(name string) (ext.StateContext, error) {
	for _, c := range []ext.StateContext{ext.ContextProject, ext.ContextPreset, ext.ContextDuplicate} {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, clap.Errorf(clap.ErrState, "state.context", "unknown state context %q", name)
}

// WriteFile marshals s to path.
func WriteFile(path string, s *Snapshot) error {
	data, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile reads a snapshot written by WriteFile.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
