package refplug

import (
	"math"

	"github.com/justyntemme/claphost/pkg/bus"
	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/dsp"
	"github.com/justyntemme/claphost/pkg/midi"
	"github.com/justyntemme/claphost/pkg/voice"
)

// Synth parameter ids.
const (
	SynthAttack uint32 = iota + 1
	SynthDecay
	SynthSustain
	SynthRelease
	SynthVolume
)

// SynthVoices is the polyphony of the simple synth.
const SynthVoices = 16

var synthNoteNames = []clap.NoteName{
	{Name: "Middle C", Port: clap.Wildcard, Key: 60, Channel: clap.Wildcard},
	{Name: "A440", Port: clap.Wildcard, Key: 69, Channel: clap.Wildcard},
}

// synthVoice is one sine oscillator with its own envelope.
type synthVoice struct {
	osc      *dsp.Sine
	env      *dsp.ADSR
	note     uint8
	velocity float64
	age      int64
}

func (v *synthVoice) Active() bool       { return v.env.Active() }
func (v *synthVoice) Note() uint8        { return v.note }
func (v *synthVoice) Amplitude() float64 { return v.env.Level() * v.velocity }
func (v *synthVoice) Age() int64         { return v.age }

func (v *synthVoice) Trigger(note, velocity uint8) {
	if v.note != note || !v.env.Active() {
		v.osc.Reset()
	}
	v.note = note
	v.velocity = float64(velocity) / 127
	v.age = 0
	v.osc.SetFrequency(midi.NoteToFrequency(note, 440))
	v.env.Trigger()
}

func (v *synthVoice) Release() { v.env.Release() }
func (v *synthVoice) Stop()    { v.env.Reset() }

func (v *synthVoice) next() float64 {
	v.age++
	return v.osc.Next() * v.env.Next() * v.velocity
}

type synth struct {
	base

	voices    []*synthVoice
	allocator *voice.Allocator
	layout    bus.Layout
	editor    *editor
	volume    float64
}

func newSynth(host *clap.Host) *clap.Plugin {
	s := &synth{
		layout: bus.NewBuilder().WithStereoOutput("Out").With64Bit().MustBuild(),
	}
	s.host = host
	s.desc = synthDescriptor
	s.editor = newEditor(host, 640, 400)
	s.params = newParamSet(
		newParam(SynthAttack, "Attack").module("Envelope").rng(0.001, 5).def(0.01).
			formatter(secondsFormatter, secondsParser).build(),
		newParam(SynthDecay, "Decay").module("Envelope").rng(0.001, 5).def(0.1).
			formatter(secondsFormatter, secondsParser).build(),
		newParam(SynthSustain, "Sustain").module("Envelope").rng(0, 1).def(0.7).
			formatter(percentFormatter, percentParser).build(),
		newParam(SynthRelease, "Release").module("Envelope").rng(0.001, 10).def(0.3).
			formatter(secondsFormatter, secondsParser).build(),
		newParam(SynthVolume, "Volume").rng(-60, 6).def(-6).
			formatter(decibelFormatter, decibelParser).build(),
	)

	s.voices = make([]*synthVoice, SynthVoices)
	pool := make([]voice.Voice, SynthVoices)
	for i := range s.voices {
		s.voices[i] = &synthVoice{osc: dsp.NewSine(44100), env: dsp.NewADSR(44100)}
		pool[i] = s.voices[i]
	}
	s.allocator = voice.NewAllocator(pool)
	s.params.changed = func(uint32, float64) { s.updateParams() }
	s.updateParams()

	p := s.table()
	p.Activate = func(sampleRate float64, minFrames, maxFrames uint32) bool {
		if !s.activate(sampleRate, minFrames, maxFrames) {
			return false
		}
		for _, v := range s.voices {
			v.osc.SetSampleRate(sampleRate)
			v.env.SetSampleRate(sampleRate)
		}
		return true
	}
	p.Reset = s.allocator.Reset
	p.Process = s.process
	p.GetExtension = s.extension
	return p
}

func (s *synth) updateParams() {
	a := s.params.value(SynthAttack)
	d := s.params.value(SynthDecay)
	sus := s.params.value(SynthSustain)
	r := s.params.value(SynthRelease)
	for _, v := range s.voices {
		v.env.Set(a, d, sus, r)
	}
	s.volume = dsp.DbToLinear(s.params.value(SynthVolume))
}

func (s *synth) extension(id string) any {
	switch id {
	case clap.ExtParams:
		t := s.params.table()
		flush := t.Flush
		t.Flush = func(in clap.InputEvents, out clap.OutputEvents) {
			flush(in, out)
			if in.Size() > 0 {
				s.markDirty()
			}
		}
		return t
	case clap.ExtState:
		return &clap.PluginState{
			Save: func(st *clap.OutputStream) bool { return saveParams(st, s.params, nil) == nil },
			Load: func(st *clap.InputStream) bool { return loadParams(st, s.params, nil) == nil },
		}
	case clap.ExtAudioPorts:
		return s.layout.Table()
	case clap.ExtNotePorts:
		return &clap.PluginNotePorts{
			Count: func(isInput bool) uint32 {
				if isInput {
					return 1
				}
				return 0
			},
			Get: func(index uint32, isInput bool, info *clap.NotePortInfo) bool {
				if !isInput || index != 0 {
					return false
				}
				*info = clap.NotePortInfo{
					ID:                0,
					Name:              "Notes",
					SupportedDialects: clap.NoteDialectCLAP | clap.NoteDialectMIDI,
					PreferredDialect:  clap.NoteDialectCLAP,
				}
				return true
			},
		}
	case clap.ExtGUI:
		return s.editor.table()
	case clap.ExtVoiceInfo:
		return &clap.PluginVoiceInfo{Get: func(info *clap.VoiceInfo) bool {
			*info = clap.VoiceInfo{VoiceCount: SynthVoices, VoiceCapacity: SynthVoices}
			return true
		}}
	case clap.ExtNoteName:
		return &clap.PluginNoteName{
			Count: func() uint32 { return uint32(len(synthNoteNames)) },
			Get: func(index uint32, name *clap.NoteName) bool {
				if int(index) >= len(synthNoteNames) {
					return false
				}
				*name = synthNoteNames[index]
				return true
			},
		}
	case clap.ExtRender:
		return s.base.render()
	case clap.ExtTail:
		return &clap.PluginTail{Get: func() uint32 {
			if len(s.voices) == 0 {
				return 0
			}
			return s.voices[0].env.ReleaseSamples()
		}}
	}
	return nil
}

// process renders sample-accurately: audio is generated up to each event's
// offset before the event is applied.
func (s *synth) process(p *clap.Process) clap.ProcessStatus {
	if len(p.AudioOutputs) == 0 {
		return clap.ProcessError
	}
	out := sampleWriter{buf: &p.AudioOutputs[0]}
	frames := p.FramesCount

	var pos uint32
	if p.InEvents != nil {
		n := p.InEvents.Size()
		for i := uint32(0); i < n; i++ {
			ev := p.InEvents.Get(i)
			if at := min(ev.Time, frames); at > pos {
				s.render(out, pos, at)
				pos = at
			}
			s.handle(ev)
		}
	}
	s.render(out, pos, frames)

	if s.allocator.ActiveCount() == 0 {
		return clap.ProcessSleep
	}
	return clap.ProcessContinue
}

func (s *synth) handle(ev *clap.Event) {
	if s.params.apply(ev) || ev.SpaceID != clap.CoreEventSpaceID {
		return
	}
	switch ev.Type {
	case clap.EventNoteOn:
		if ev.Key < 0 || ev.Key > 127 {
			return
		}
		vel := uint8(math.Round(math.Max(0, math.Min(1, ev.Velocity)) * 127))
		s.allocator.NoteOn(uint8(ev.Key), max(vel, 1))
	case clap.EventNoteOff:
		if ev.Key < 0 || ev.Key > 127 {
			return
		}
		s.allocator.NoteOff(uint8(ev.Key))
	case clap.EventNoteChoke:
		s.allocator.Reset()
	case clap.EventMIDI:
		if me, ok := midi.Parse(ev.Time, ev.MIDI); ok {
			s.allocator.HandleEvent(me)
		}
	}
}

func (s *synth) render(out sampleWriter, from, to uint32) {
	for i := from; i < to; i++ {
		sum := 0.0
		for _, v := range s.voices {
			if v.Active() {
				sum += v.next()
			}
		}
		out.set(i, sum*s.volume)
	}
}
