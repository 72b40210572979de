package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/ext"
	"github.com/justyntemme/claphost/pkg/host"
	"github.com/justyntemme/claphost/pkg/param"
)

type description struct {
	Plugin     host.PluginDescriptor `yaml:"plugin"`
	Extensions []string              `yaml:"extensions"`
	Params     []paramDescription    `yaml:"params,omitempty"`
	AudioIn    []portDescription     `yaml:"audio_inputs,omitempty"`
	AudioOut   []portDescription     `yaml:"audio_outputs,omitempty"`
	NotesIn    []portDescription     `yaml:"note_inputs,omitempty"`
	NotesOut   []portDescription     `yaml:"note_outputs,omitempty"`
	Configs    []configDescription   `yaml:"port_configs,omitempty"`
	Voices     *ext.Voices           `yaml:"voices,omitempty"`
	NoteNames  []noteNameDescription `yaml:"note_names,omitempty"`
	Latency    *uint32               `yaml:"latency,omitempty"`
	Tail       *uint32               `yaml:"tail,omitempty"`
	// HardRealtime is only known for plugins with the render extension.
	HardRealtime *bool `yaml:"hard_realtime,omitempty"`
}

type configDescription struct {
	ID          uint32 `yaml:"id"`
	Name        string `yaml:"name"`
	InChannels  uint32 `yaml:"main_input_channels,omitempty"`
	OutChannels uint32 `yaml:"main_output_channels,omitempty"`
}

type noteNameDescription struct {
	Key     int16  `yaml:"key"`
	Channel int16  `yaml:"channel"`
	Name    string `yaml:"name"`
}

type paramDescription struct {
	ID      uint32   `yaml:"id"`
	Name    string   `yaml:"name"`
	Module  string   `yaml:"module,omitempty"`
	Min     float64  `yaml:"min"`
	Max     float64  `yaml:"max"`
	Default float64  `yaml:"default"`
	Value   float64  `yaml:"value"`
	Text    string   `yaml:"text,omitempty"`
	Flags   []string `yaml:"flags,omitempty"`
}

type portDescription struct {
	ID       uint32 `yaml:"id"`
	Name     string `yaml:"name"`
	Channels uint32 `yaml:"channels,omitempty"`
}

func paramFlags(info param.Info) []string {
	var flags []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{info.IsStepped(), "stepped"},
		{info.IsPeriodic(), "periodic"},
		{info.IsHidden(), "hidden"},
		{info.IsReadOnly(), "readonly"},
		{info.IsBypass(), "bypass"},
		{info.IsAutomatable(), "automatable"},
		{info.IsModulatable(), "modulatable"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	return flags
}

func (a *app) describeCommand() *cobra.Command {
	var format, library string
	cmd := &cobra.Command{
		Use:   "describe PLUGIN-ID",
		Short: "Show a plugin's descriptor, parameters, ports and extensions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			in, release, err := a.open(cmd.Context(), library, args[0])
			if err != nil {
				return err
			}
			defer release()

			d, err := a.describe(in)
			if err != nil {
				return err
			}
			if format == formatYAML {
				return writeYAML(cmd.OutOrStdout(), d)
			}
			return printDescription(cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text or yaml")
	cmd.Flags().StringVar(&library, "library", "", "library path (default: search every known library)")
	return cmd
}

// describe reads everything worth showing from a created instance. Latency
// is only reported by active plugins, so the instance is briefly activated.
func (a *app) describe(in *host.Instance) (*description, error) {
	d := &description{Plugin: in.Descriptor()}
	exts, err := in.Extensions()
	if err != nil {
		return nil, err
	}

	for _, e := range []struct {
		present bool
		id      string
	}{
		{exts.Params != nil, clap.ExtParams},
		{exts.State != nil, clap.ExtState},
		{exts.Editor != nil, clap.ExtGUI},
		{exts.AudioPorts != nil, clap.ExtAudioPorts},
		{exts.AudioPortsConfig != nil, clap.ExtAudioPortsCfg},
		{exts.NotePorts != nil, clap.ExtNotePorts},
		{exts.NoteNames != nil, clap.ExtNoteName},
		{exts.VoiceInfo != nil, clap.ExtVoiceInfo},
		{exts.Latency != nil, clap.ExtLatency},
		{exts.Tail != nil, clap.ExtTail},
		{exts.Render != nil, clap.ExtRender},
	} {
		if e.present {
			d.Extensions = append(d.Extensions, e.id)
		}
	}

	reg, err := in.Params()
	if err != nil {
		return nil, err
	}
	infos, err := reg.All()
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		v, err := reg.Value(info.ID)
		if err != nil {
			return nil, err
		}
		text, err := reg.ValueText(info.ID, v)
		if err != nil {
			text = ""
		}
		d.Params = append(d.Params, paramDescription{
			ID: info.ID, Name: info.Name, Module: info.Module,
			Min: info.Min, Max: info.Max, Default: info.DefaultValue,
			Value: v, Text: text, Flags: paramFlags(info),
		})
	}

	if ap := exts.AudioPorts; ap != nil {
		if d.AudioIn, err = audioPorts(ap.Ports(true)); err != nil {
			return nil, err
		}
		if d.AudioOut, err = audioPorts(ap.Ports(false)); err != nil {
			return nil, err
		}
	}
	if np := exts.NotePorts; np != nil {
		if d.NotesIn, err = notePorts(np.Ports(true)); err != nil {
			return nil, err
		}
		if d.NotesOut, err = notePorts(np.Ports(false)); err != nil {
			return nil, err
		}
	}

	if pc := exts.AudioPortsConfig; pc != nil {
		configs, err := pc.Configs()
		if err != nil {
			return nil, err
		}
		for _, c := range configs {
			d.Configs = append(d.Configs, configDescription{
				ID: c.ID, Name: c.Name,
				InChannels: c.MainInputChannelCount, OutChannels: c.MainOutputChannelCount,
			})
		}
	}
	if vi := exts.VoiceInfo; vi != nil {
		voices, err := vi.Get()
		if err != nil {
			return nil, err
		}
		d.Voices = &voices
	}
	if nn := exts.NoteNames; nn != nil {
		names, err := nn.List()
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			d.NoteNames = append(d.NoteNames, noteNameDescription{Key: n.Key, Channel: n.Channel, Name: n.Name})
		}
	}
	if r := exts.Render; r != nil {
		hard, err := r.HardRealtime()
		if err != nil {
			return nil, err
		}
		d.HardRealtime = &hard
	}

	if exts.Latency != nil || exts.Tail != nil {
		audio := a.cfg.Audio
		if err := in.Activate(audio.SampleRate, audio.MinBlock, audio.MaxBlock); err != nil {
			return nil, err
		}
		if exts.Latency != nil {
			n, err := exts.Latency.Samples()
			if err != nil {
				return nil, err
			}
			d.Latency = &n
		}
		if exts.Tail != nil {
			n, err := exts.Tail.Samples()
			if err != nil {
				return nil, err
			}
			d.Tail = &n
		}
		if err := in.Deactivate(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func audioPorts(infos []clap.AudioPortInfo, err error) ([]portDescription, error) {
	if err != nil {
		return nil, err
	}
	out := make([]portDescription, len(infos))
	for i, p := range infos {
		out[i] = portDescription{ID: p.ID, Name: p.Name, Channels: p.ChannelCount}
	}
	return out, nil
}

func notePorts(infos []clap.NotePortInfo, err error) ([]portDescription, error) {
	if err != nil {
		return nil, err
	}
	out := make([]portDescription, len(infos))
	for i, p := range infos {
		out[i] = portDescription{ID: p.ID, Name: p.Name}
	}
	return out, nil
}

func printDescription(w io.Writer, d *description) error {
	p := d.Plugin
	fmt.Fprintf(w, "%s %s (%s)\n", p.Name, p.Version, p.ID)
	if p.Vendor != "" {
		fmt.Fprintf(w, "vendor:     %s\n", p.Vendor)
	}
	if p.Description != "" {
		fmt.Fprintf(w, "about:      %s\n", p.Description)
	}
	fmt.Fprintf(w, "features:   %s\n", strings.Join(p.Features, ", "))
	fmt.Fprintf(w, "extensions: %s\n", strings.Join(d.Extensions, ", "))
	if d.Latency != nil {
		fmt.Fprintf(w, "latency:    %d samples\n", *d.Latency)
	}
	if d.Tail != nil {
		fmt.Fprintf(w, "tail:       %d samples\n", *d.Tail)
	}
	if d.HardRealtime != nil {
		fmt.Fprintf(w, "realtime:   %s\n", map[bool]string{true: "required", false: "offline capable"}[*d.HardRealtime])
	}
	if v := d.Voices; v != nil {
		fmt.Fprintf(w, "voices:     %d of %d\n", v.Count, v.Capacity)
	}
	for _, c := range d.Configs {
		fmt.Fprintf(w, "config:     #%d %s (%d in, %d out)\n", c.ID, c.Name, c.InChannels, c.OutChannels)
	}
	for _, n := range d.NoteNames {
		fmt.Fprintf(w, "note name:  %d %s\n", n.Key, n.Name)
	}
	for _, ports := range []struct {
		label string
		list  []portDescription
	}{
		{"audio in", d.AudioIn}, {"audio out", d.AudioOut},
		{"notes in", d.NotesIn}, {"notes out", d.NotesOut},
	} {
		for _, port := range ports.list {
			fmt.Fprintf(w, "%-11s #%d %s", ports.label+":", port.ID, port.Name)
			if port.Channels > 0 {
				fmt.Fprintf(w, " (%d ch)", port.Channels)
			}
			fmt.Fprintln(w)
		}
	}
	if len(d.Params) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tMODULE\tRANGE\tDEFAULT\tVALUE\tFLAGS")
	for _, prm := range d.Params {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%g..%g\t%g\t%s\t%s\n",
			prm.ID, prm.Name, prm.Module, prm.Min, prm.Max, prm.Default,
			valueText(prm), strings.Join(prm.Flags, ","))
	}
	return tw.Flush()
}

func valueText(p paramDescription) string {
	if p.Text != "" {
		return p.Text
	}
	return fmt.Sprintf("%g", p.Value)
}

// resolveParam accepts a numeric id or a parameter name.
func resolveParam(infos []param.Info, key string) (uint32, error) {
	for _, info := range infos {
		if info.Name == key {
			return info.ID, nil
		}
	}
	if id, err := strconv.ParseUint(key, 10, 32); err == nil {
		return uint32(id), nil
	}
	return 0, fmt.Errorf("no parameter named %q", key)
}
