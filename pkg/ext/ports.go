package ext

import (
	"github.com/justyntemme/claphost/pkg/clap"
)

// AudioPorts wraps the audio-ports extension.
type AudioPorts struct {
	raw   *clap.PluginAudioPorts
	guard *Guard
}

// NewAudioPorts negotiates the audio-ports extension.
func NewAudioPorts(n *Negotiator) (*AudioPorts, bool) {
	h, ok := n.Negotiate(clap.ExtAudioPorts)
	if !ok {
		return nil, false
	}
	raw, ok := h.raw.(*clap.PluginAudioPorts)
	if !ok || raw.Count == nil || raw.Get == nil {
		n.reject(clap.ExtAudioPorts, "unusable table")
		return nil, false
	}
	return &AudioPorts{raw: raw, guard: n.guard}, true
}

// Ports lists the input or output ports. Ports the plugin fails to describe
// are skipped.
func (a *AudioPorts) Ports(isInput bool) ([]clap.AudioPortInfo, error) {
	if err := a.guard.Check("audio_ports.get"); err != nil {
		return nil, err
	}
	count := a.raw.Count(isInput)
	ports := make([]clap.AudioPortInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		var info clap.AudioPortInfo
		if a.raw.Get(i, isInput, &info) {
			ports = append(ports, info)
		}
	}
	return ports, nil
}

// NotePorts wraps the note-ports extension.
type NotePorts struct {
	raw   *clap.PluginNotePorts
	guard *Guard
}

// NewNotePorts negotiates the note-ports extension.
func NewNotePorts(n *Negotiator) (*NotePorts, bool) {
	h, ok := n.Negotiate(clap.ExtNotePorts)
	if !ok {
		return nil, false
	}
	raw, ok := h.raw.(*clap.PluginNotePorts)
	if !ok || raw.Count == nil || raw.Get == nil {
		n.reject(clap.ExtNotePorts, "unusable table")
		return nil, false
	}
	return &NotePorts{raw: raw, guard: n.guard}, true
}

// Ports lists the input or output note ports.
func (np *NotePorts) Ports(isInput bool) ([]clap.NotePortInfo, error) {
	if err := np.guard.Check("note_ports.get"); err != nil {
		return nil, err
	}
	count := np.raw.Count(isInput)
	ports := make([]clap.NotePortInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		var info clap.NotePortInfo
		if np.raw.Get(i, isInput, &info) {
			ports = append(ports, info)
		}
	}
	return ports, nil
}

// AudioPortsConfig wraps the audio-ports-config extension.
type AudioPortsConfig struct {
	raw    *clap.PluginAudioPortsConfig
	guard  *Guard
	active func() bool
}

// NewAudioPortsConfig negotiates the audio-ports-config extension.
func NewAudioPortsConfig(n *Negotiator) (*AudioPortsConfig, bool) {
	h, ok := n.Negotiate(clap.ExtAudioPortsCfg)
	if !ok {
		return nil, false
	}
	raw, ok := h.raw.(*clap.PluginAudioPortsConfig)
	if !ok || raw.Count == nil || raw.Get == nil {
		n.reject(clap.ExtAudioPortsCfg, "unusable table")
		return nil, false
	}
	return &AudioPortsConfig{raw: raw, guard: n.guard, active: n.active}, true
}

// Configs lists the plugin's predefined port configurations.
func (a *AudioPortsConfig) Configs() ([]clap.AudioPortsConfig, error) {
	if err := a.guard.Check("audio_ports_config.get"); err != nil {
		return nil, err
	}
	count := a.raw.Count()
	configs := make([]clap.AudioPortsConfig, 0, count)
	for i := uint32(0); i < count; i++ {
		var c clap.AudioPortsConfig
		if a.raw.Get(i, &c) {
			configs = append(configs, c)
		}
	}
	return configs, nil
}

// Select switches to the configuration with id. The plugin must be
// inactive; the new layout is read at the next activation.
func (a *AudioPortsConfig) Select(id uint32) error {
	if err := a.guard.Check("audio_ports_config.select"); err != nil {
		return err
	}
	if a.active() {
		return clap.Errorf(clap.ErrInvalidState, "audio_ports_config.select", "plugin is active")
	}
	if a.raw.Select == nil || !a.raw.Select(id) {
		return clap.Errorf(clap.ErrRejected, "audio_ports_config.select", "configuration %d", id)
	}
	return nil
}
