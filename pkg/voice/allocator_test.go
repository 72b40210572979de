package voice

import (
	"testing"

	"github.com/justyntemme/claphost/pkg/midi"
)

// testVoice is a simple voice implementation for testing
type testVoice struct {
	active    bool
	released  bool
	note      uint8
	velocity  uint8
	amplitude float64
	age       int64
}

func (v *testVoice) Active() bool       { return v.active }
func (v *testVoice) Note() uint8        { return v.note }
func (v *testVoice) Amplitude() float64 { return v.amplitude }
func (v *testVoice) Age() int64         { return v.age }
func (v *testVoice) Trigger(note, velocity uint8) {
	v.active = true
	v.released = false
	v.note = note
	v.velocity = velocity
	v.age = 0
	v.amplitude = float64(velocity) / 127.0
}
func (v *testVoice) Release() { v.active = false; v.released = true }
func (v *testVoice) Stop()    { v.active = false }

func createTestVoices(count int) ([]Voice, []*testVoice) {
	voices := make([]Voice, count)
	raw := make([]*testVoice, count)
	for i := range voices {
		raw[i] = &testVoice{}
		voices[i] = raw[i]
	}
	return voices, raw
}

func playing(raw []*testVoice, note uint8) *testVoice {
	for _, v := range raw {
		if v.active && v.note == note {
			return v
		}
	}
	return nil
}

func TestAllocatorPolyMode(t *testing.T) {
	voices, raw := createTestVoices(4)
	a := NewAllocator(voices)

	a.NoteOn(60, 100)
	a.NoteOn(64, 100)
	a.NoteOn(67, 100)
	if n := a.ActiveCount(); n != 3 {
		t.Errorf("Expected 3 active voices, got %d", n)
	}

	a.NoteOff(64)
	if n := a.ActiveCount(); n != 2 {
		t.Errorf("Expected 2 active voices after note off, got %d", n)
	}

	a.NoteOn(60, 80)
	v := playing(raw, 60)
	if v == nil {
		t.Fatal("Note 60 should be playing after retrigger")
	}
	if v.velocity != 80 {
		t.Errorf("Expected velocity 80 for retriggered note, got %d", v.velocity)
	}
	if n := a.ActiveCount(); n != 2 {
		t.Errorf("retrigger should reuse the voice, got %d active", n)
	}
}

func TestAllocatorMonoMode(t *testing.T) {
	voices, raw := createTestVoices(4)
	a := NewAllocator(voices)
	a.SetMode(ModeMono)

	a.NoteOn(60, 100)
	a.NoteOn(64, 100)
	a.NoteOn(67, 100)

	if n := a.ActiveCount(); n != 1 {
		t.Errorf("Expected 1 active voice in mono mode, got %d", n)
	}
	if raw[0].note != 67 {
		t.Errorf("Expected note 67 in mono mode, got %d", raw[0].note)
	}

	a.NoteOff(60)
	if !raw[0].active {
		t.Error("releasing a superseded note should not stop the voice")
	}
	a.NoteOff(67)
	if raw[0].active {
		t.Error("voice should be released")
	}
}

func TestAllocatorUnisonMode(t *testing.T) {
	voices, raw := createTestVoices(4)
	a := NewAllocator(voices)
	a.SetMode(ModeUnison)
	a.SetMaxVoices(3)

	a.NoteOn(60, 100)
	if n := a.ActiveCount(); n != 3 {
		t.Errorf("Expected 3 unison voices, got %d", n)
	}
	if raw[3].active {
		t.Error("voice beyond the limit should stay idle")
	}
	a.NoteOff(60)
	if n := a.ActiveCount(); n != 0 {
		t.Errorf("Expected 0 active voices, got %d", n)
	}
}

func TestAllocatorStealing(t *testing.T) {
	tests := []struct {
		name     string
		stealing Stealing
		setup    func(raw []*testVoice)
		stolen   uint8
	}{
		{"oldest", StealOldest, func(raw []*testVoice) { playing(raw, 62).age = 1000 }, 62},
		{"quietest", StealQuietest, func(raw []*testVoice) { playing(raw, 64).amplitude = 0.01 }, 64},
		{"highest", StealHighest, func([]*testVoice) {}, 64},
		{"lowest", StealLowest, func([]*testVoice) {}, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			voices, raw := createTestVoices(3)
			a := NewAllocator(voices)
			a.SetStealing(tt.stealing)

			a.NoteOn(60, 100)
			a.NoteOn(62, 100)
			a.NoteOn(64, 100)
			tt.setup(raw)

			a.NoteOn(72, 100)
			if playing(raw, tt.stolen) != nil {
				t.Errorf("note %d should have been stolen", tt.stolen)
			}
			if playing(raw, 72) == nil {
				t.Error("new note should be playing")
			}
			if n := a.ActiveCount(); n != 3 {
				t.Errorf("Expected 3 active voices, got %d", n)
			}

			// A note off for the stolen note must not touch the new one.
			a.NoteOff(tt.stolen)
			if playing(raw, 72) == nil {
				t.Error("stale note off released the stealing voice")
			}
		})
	}
}

func TestAllocatorStealNone(t *testing.T) {
	voices, raw := createTestVoices(2)
	a := NewAllocator(voices)
	a.SetStealing(StealNone)

	a.NoteOn(60, 100)
	a.NoteOn(62, 100)
	a.NoteOn(64, 100)
	if playing(raw, 64) != nil {
		t.Error("note should be dropped when the pool is full")
	}
}

func TestAllocatorSustainPedal(t *testing.T) {
	voices, raw := createTestVoices(4)
	a := NewAllocator(voices)

	a.NoteOn(60, 100)
	a.HandleEvent(midi.ControlChange(0, 0, midi.CCSustain, 127))
	a.NoteOff(60)
	if playing(raw, 60) == nil {
		t.Error("note should be held by the pedal")
	}

	a.HandleEvent(midi.ControlChange(0, 0, midi.CCSustain, 0))
	if playing(raw, 60) != nil {
		t.Error("note should be released when the pedal lifts")
	}
}

func TestAllocatorHandleEvent(t *testing.T) {
	voices, raw := createTestVoices(4)
	a := NewAllocator(voices)

	a.HandleEvent(midi.NoteOn(0, 0, 60, 100))
	a.HandleEvent(midi.NoteOn(0, 0, 64, 100))
	if n := a.ActiveCount(); n != 2 {
		t.Fatalf("Expected 2 active voices, got %d", n)
	}

	a.HandleEvent(midi.NoteOn(0, 0, 60, 0))
	if playing(raw, 60) != nil {
		t.Error("velocity 0 note on is a note off")
	}

	a.HandleEvent(midi.ControlChange(0, 0, midi.CCAllNotesOff, 0))
	if n := a.ActiveCount(); n != 0 {
		t.Errorf("all notes off left %d voices", n)
	}
	if !raw[0].released && !raw[1].released {
		t.Error("all notes off should release, not stop")
	}
}

func TestAllocatorDoesNotAllocate(t *testing.T) {
	voices, _ := createTestVoices(16)
	a := NewAllocator(voices)

	allocs := testing.AllocsPerRun(100, func() {
		for n := uint8(40); n < 80; n++ {
			a.HandleEvent(midi.NoteOn(0, 0, n, 100))
		}
		a.HandleEvent(midi.ControlChange(0, 0, midi.CCSustain, 127))
		for n := uint8(40); n < 80; n++ {
			a.HandleEvent(midi.NoteOff(0, 0, n, 0))
		}
		a.HandleEvent(midi.ControlChange(0, 0, midi.CCSustain, 0))
	})
	if allocs != 0 {
		t.Errorf("allocator allocated %v times per run", allocs)
	}
}
