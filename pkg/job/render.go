package job

import (
	"bufio"
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/justyntemme/claphost/pkg/bus"
	"github.com/justyntemme/claphost/pkg/events"
	"github.com/justyntemme/claphost/pkg/ext"
	"github.com/justyntemme/claphost/pkg/host"
	"github.com/justyntemme/claphost/pkg/loader"
	"github.com/justyntemme/claphost/pkg/meter"
	"github.com/justyntemme/claphost/pkg/midi"
	"github.com/justyntemme/claphost/pkg/param"
	"github.com/justyntemme/claphost/pkg/process"
)

// Result summarises one finished render.
type Result struct {
	Name        string         `json:"name" yaml:"name"`
	Plugin      string         `json:"plugin" yaml:"plugin"`
	Instance    string         `json:"instance" yaml:"instance"`
	SampleRate  float64        `json:"sample_rate" yaml:"sample_rate"`
	Mode        string         `json:"mode" yaml:"mode"`
	Frames      int64          `json:"frames" yaml:"frames"`
	Blocks      int            `json:"blocks" yaml:"blocks"`
	SleepBlocks int            `json:"sleep_blocks" yaml:"sleep_blocks"`
	Levels      []meter.Levels `json:"levels" yaml:"levels"`
	Output      string         `json:"output,omitempty" yaml:"output,omitempty"`
	Elapsed     time.Duration  `json:"elapsed" yaml:"elapsed"`
}

// Silent reports whether every channel stayed at zero.
func (r *Result) Silent() bool {
	for _, l := range r.Levels {
		if l.Peak > 0 {
			return false
		}
	}
	return true
}

// Renderer runs jobs against plugins resolved through Loader.
type Renderer struct {
	Loader loader.Loader
	Log    zerolog.Logger
	// Options are applied to every library and instance.
	Options []host.Option
	// Concurrency bounds RenderAll; zero or less means one job per goroutine.
	Concurrency int
}

// RenderAll renders jobs concurrently, one instance per goroutine. Results
// keep the order of jobs. The first failure cancels the rest.
func (r *Renderer) RenderAll(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}
	for i := range jobs {
		g.Go(func() error {
			res, err := r.Render(ctx, jobs[i])
			if err != nil {
				return fmt.Errorf("job %q: %w", jobs[i].Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Render runs one job to completion on a fresh instance.
func (r *Renderer) Render(ctx context.Context, j Job) (res *Result, err error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	log := r.Log.With().Str("job", j.Name).Str("plugin", j.Plugin).Logger()
	opts := append(slices.Clone(r.Options), host.WithLogger(log))

	lib, err := host.Open(ctx, r.Loader, j.Library, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := lib.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	in, err := lib.NewInstance(j.Plugin, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if derr := in.Destroy(); derr != nil && err == nil {
			err = derr
		}
	}()

	if err := in.Create(); err != nil {
		return nil, err
	}
	mode, err := preferOffline(in)
	if err != nil {
		return nil, err
	}
	if err := in.Activate(j.SampleRate, 1, j.BlockSize); err != nil {
		return nil, err
	}
	reg, err := in.Params()
	if err != nil {
		return nil, err
	}
	changes, err := scheduleParams(&j, reg)
	if err != nil {
		return nil, err
	}
	if err := in.StartProcessing(); err != nil {
		return nil, err
	}

	layout, err := in.Layout()
	if err != nil {
		return nil, err
	}
	outputs := layout.Channels(bus.Output)
	buffers := process.NewBuffers(layout.Channels(bus.Input), outputs, j.BlockSize)
	m := meter.New(outputs, j.SampleRate)

	var sink *rawWriter
	if j.Output != "" {
		sink, err = createRaw(j.Output, outputs, int(j.BlockSize))
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := sink.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	log.Debug().Int64("frames", j.Frames()).Uint32("block", j.BlockSize).Msg("rendering")

	res = &Result{
		Name:       j.Name,
		Plugin:     j.Plugin,
		Instance:   in.ID().String(),
		SampleRate: j.SampleRate,
		Mode:       mode.String(),
		Output:     j.Output,
	}
	var transport *events.Transport
	if j.Tempo > 0 {
		t := events.NewTransport()
		t.Tempo, t.Playing = j.Tempo, true
		transport = &t
	}

	notes := scheduleNotes(&j)
	block := events.ProcessContext{Transport: transport}
	total := j.Frames()
	for pos := int64(0); pos < total; pos += int64(buffers.Frames) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buffers.Frames = uint32(min(int64(j.BlockSize), total-pos))
		end := pos + int64(buffers.Frames)

		block.Reset()
		changes = takeParams(&block, changes, pos, end)
		notes = takeNotes(&block, notes, pos, end)

		result, err := in.Process(buffers, &block)
		if err != nil {
			return nil, err
		}
		if result.Status == events.StatusSleep {
			res.SleepBlocks++
		}
		m.Block32(buffers.Outputs, int(buffers.Frames))
		if sink != nil {
			if err := sink.write(buffers.Outputs, int(buffers.Frames)); err != nil {
				return nil, err
			}
		}
		if transport != nil {
			transport.Advance(buffers.Frames, j.SampleRate)
		}
		res.Blocks++
		res.Frames = end
	}

	if err := in.StopProcessing(); err != nil {
		return nil, err
	}
	res.Levels = m.Levels()
	res.Elapsed = time.Since(started)
	log.Info().Int("blocks", res.Blocks).Dur("elapsed", res.Elapsed).Msg("render finished")
	return res, nil
}

// preferOffline switches the plugin to offline rendering unless it needs
// hard realtime or lacks the render extension.
func preferOffline(in *host.Instance) (ext.RenderMode, error) {
	exts, err := in.Extensions()
	if err != nil {
		return ext.RenderRealtime, err
	}
	if exts.Render == nil {
		return ext.RenderRealtime, nil
	}
	hard, err := exts.Render.HardRealtime()
	if err != nil || hard {
		return ext.RenderRealtime, err
	}
	if err := exts.Render.Set(ext.RenderOffline); err != nil {
		return ext.RenderRealtime, err
	}
	return ext.RenderOffline, nil
}

type timedChange struct {
	frame  int64
	change events.ParamChange
}

// scheduleParams resolves parameter names and values and orders the changes
// by frame.
func scheduleParams(j *Job, reg *param.Registry) ([]timedChange, error) {
	if len(j.Params) == 0 {
		return nil, nil
	}
	infos, err := reg.All()
	if err != nil {
		return nil, err
	}
	out := make([]timedChange, 0, len(j.Params))
	for _, p := range j.Params {
		id := p.ID
		if p.Name != "" {
			i := slices.IndexFunc(infos, func(info param.Info) bool { return info.Name == p.Name })
			if i < 0 {
				return nil, fmt.Errorf("%w: job %q: no parameter named %q", ErrInvalid, j.Name, p.Name)
			}
			id = infos[i].ID
		}
		info, err := reg.Get(id)
		if err != nil {
			return nil, err
		}
		v, err := info.Validate(p.Value)
		if err != nil {
			return nil, fmt.Errorf("job %q: parameter %q: %w", j.Name, info.Name, err)
		}
		out = append(out, timedChange{frame: j.frameAt(p.At), change: events.NewParamChange(id, v, 0)})
	}
	slices.SortStableFunc(out, func(a, b timedChange) int { return cmp.Compare(a.frame, b.frame) })
	return out, nil
}

func takeParams(block *events.ProcessContext, pending []timedChange, from, to int64) []timedChange {
	for len(pending) > 0 && pending[0].frame < to {
		pc := pending[0].change
		pc.Offset = uint32(max(0, pending[0].frame-from))
		block.ParamChanges = append(block.ParamChanges, pc)
		pending = pending[1:]
	}
	return pending
}

type timedNote struct {
	frame int64
	event midi.Event
}

// scheduleNotes expands notes into on and off events ordered by frame. At
// equal frames note-offs come first so a retriggered key sounds.
func scheduleNotes(j *Job) []timedNote {
	out := make([]timedNote, 0, 2*len(j.Notes))
	for _, n := range j.Notes {
		start := j.frameAt(n.Start)
		out = append(out, timedNote{start, midi.NoteOn(0, n.Channel, n.Key, n.Velocity)})
		if n.Length > 0 {
			end := max(start+1, j.frameAt(n.Start+n.Length))
			out = append(out, timedNote{end, midi.NoteOff(0, n.Channel, n.Key, 0)})
		}
	}
	slices.SortStableFunc(out, func(a, b timedNote) int {
		if c := cmp.Compare(a.frame, b.frame); c != 0 {
			return c
		}
		return cmp.Compare(offRank(a.event), offRank(b.event))
	})
	return out
}

func offRank(e midi.Event) int {
	if e.Type == midi.EventTypeNoteOff {
		return 0
	}
	return 1
}

func takeNotes(block *events.ProcessContext, pending []timedNote, from, to int64) []timedNote {
	for len(pending) > 0 && pending[0].frame < to {
		ev := pending[0].event
		ev.Offset = uint32(pending[0].frame - from)
		block.MIDI = append(block.MIDI, ev)
		pending = pending[1:]
	}
	return pending
}

// rawWriter writes interleaved little-endian float32 frames.
type rawWriter struct {
	f       *os.File
	w       *bufio.Writer
	scratch []byte
}

func createRaw(path string, channels, maxFrames int) (*rawWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("job: output: %w", err)
	}
	return &rawWriter{
		f:       f,
		w:       bufio.NewWriter(f),
		scratch: make([]byte, 0, 4*channels*maxFrames),
	}, nil
}

func (r *rawWriter) write(channels [][]float32, frames int) error {
	buf := r.scratch[:0]
	for i := 0; i < frames; i++ {
		for _, ch := range channels {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(ch[i]))
		}
	}
	_, err := r.w.Write(buf)
	return err
}

func (r *rawWriter) Close() error {
	ferr := r.w.Flush()
	if err := r.f.Close(); ferr == nil {
		ferr = err
	}
	return ferr
}
