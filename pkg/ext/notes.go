package ext

import (
	"github.com/justyntemme/claphost/pkg/clap"
)

// Voices is a plugin's reported polyphony.
type Voices struct {
	Count       uint32 `json:"count" yaml:"count"`
	Capacity    uint32 `json:"capacity" yaml:"capacity"`
	Overlapping bool   `json:"overlapping_notes" yaml:"overlapping_notes"`
}

// VoiceInfo wraps the voice-info extension.
type VoiceInfo struct {
	raw   *clap.PluginVoiceInfo
	guard *Guard
}

// NewVoiceInfo negotiates the voice-info extension.
func NewVoiceInfo(n *Negotiator) (*VoiceInfo, bool) {
	h, ok := n.Negotiate(clap.ExtVoiceInfo)
	if !ok {
		return nil, false
	}
	raw, ok := h.raw.(*clap.PluginVoiceInfo)
	if !ok || raw.Get == nil {
		n.reject(clap.ExtVoiceInfo, "unusable table")
		return nil, false
	}
	return &VoiceInfo{raw: raw, guard: n.guard}, true
}

// Get returns the plugin's voice count and capacity.
func (v *VoiceInfo) Get() (Voices, error) {
	if err := v.guard.Check("voice_info.get"); err != nil {
		return Voices{}, err
	}
	var info clap.VoiceInfo
	if !v.raw.Get(&info) {
		return Voices{}, clap.Errorf(clap.ErrRejected, "voice_info.get", "plugin has no voice info")
	}
	return Voices{
		Count:       info.VoiceCount,
		Capacity:    info.VoiceCapacity,
		Overlapping: info.Flags&clap.VoiceInfoSupportsOverlappingNotes != 0,
	}, nil
}

// NoteNames wraps the note-name extension.
type NoteNames struct {
	raw   *clap.PluginNoteName
	guard *Guard
}

// NewNoteNames negotiates the note-name extension.
func NewNoteNames(n *Negotiator) (*NoteNames, bool) {
	h, ok := n.Negotiate(clap.ExtNoteName)
	if !ok {
		return nil, false
	}
	raw, ok := h.raw.(*clap.PluginNoteName)
	if !ok || raw.Count == nil || raw.Get == nil {
		n.reject(clap.ExtNoteName, "unusable table")
		return nil, false
	}
	return &NoteNames{raw: raw, guard: n.guard}, true
}

// List returns every named key. Entries the plugin fails to describe are
// skipped.
func (nn *NoteNames) List() ([]clap.NoteName, error) {
	if err := nn.guard.Check("note_name.get"); err != nil {
		return nil, err
	}
	count := nn.raw.Count()
	names := make([]clap.NoteName, 0, count)
	for i := uint32(0); i < count; i++ {
		var name clap.NoteName
		if nn.raw.Get(i, &name) {
			names = append(names, name)
		}
	}
	return names, nil
}
