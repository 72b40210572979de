// Package job describes offline render jobs and reads them from TOML or
// HCL files.
//
// A TOML job file lists jobs as an array of tables:
//
//	[[job]]
//	name = "c4"
//	plugin = "com.claphost.simplesynth"
//	duration = 2.0
//
//	  [[job.note]]
//	  key = 60
//	  length = 0.5
//
// The HCL form uses labelled blocks and may refer to the sample_rate and
// block_size variables:
//
//	job "c4" {
//	  plugin     = "com.claphost.simplesynth"
//	  block_size = block_size / 2
//	  duration   = 2
//	  note {
//	    key    = 60
//	    length = 0.5
//	  }
//	}
package job

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// ErrInvalid marks a job file or job that cannot be rendered.
var ErrInvalid = errors.New("invalid job")

// DefaultLibrary is used when a job names no library.
const DefaultLibrary = "builtin:refplug"

// DefaultVelocity is used for notes without a velocity.
const DefaultVelocity = 100

// Job is one offline render: a plugin, the audio settings and the notes and
// parameter changes to feed it.
type Job struct {
	Name       string  `toml:"name" hcl:"name,label"`
	Library    string  `toml:"library" hcl:"library,optional"`
	Plugin     string  `toml:"plugin" hcl:"plugin"`
	SampleRate float64 `toml:"sample_rate" hcl:"sample_rate,optional"`
	BlockSize  uint32  `toml:"block_size" hcl:"block_size,optional"`
	// Duration is the render length in seconds. Blocks, when set, wins.
	Duration float64 `toml:"duration" hcl:"duration,optional"`
	Blocks   int     `toml:"blocks" hcl:"blocks,optional"`
	// Tempo, when positive, runs a playing transport at that BPM.
	Tempo float64 `toml:"tempo" hcl:"tempo,optional"`
	// Output, when set, receives interleaved little-endian float32 samples.
	Output string `toml:"output" hcl:"output,optional"`

	Notes  []Note  `toml:"note" hcl:"note,block"`
	Params []Param `toml:"param" hcl:"param,block"`
}

// Note is a note played from Start for Length seconds. A zero Length holds
// the note to the end of the render.
type Note struct {
	Key      uint8   `toml:"key" hcl:"key"`
	Velocity uint8   `toml:"velocity" hcl:"velocity,optional"`
	Channel  uint8   `toml:"channel" hcl:"channel,optional"`
	Start    float64 `toml:"start" hcl:"start,optional"`
	Length   float64 `toml:"length" hcl:"length,optional"`
}

// Param sets a parameter, by id or by name, At seconds into the render.
type Param struct {
	ID    uint32  `toml:"id" hcl:"id,optional"`
	Name  string  `toml:"name" hcl:"name,optional"`
	Value float64 `toml:"value" hcl:"value"`
	At    float64 `toml:"at" hcl:"at,optional"`
}

// Defaults fill the settings a job leaves unset. In HCL files they are also
// in scope as the sample_rate and block_size variables.
type Defaults struct {
	SampleRate float64
	BlockSize  uint32
}

type file struct {
	Jobs []Job `toml:"job" hcl:"job,block"`
}

// Load reads path as TOML or HCL depending on its extension.
func Load(path string, d Defaults) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("job: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return ParseTOML(data, d)
	case ".hcl":
		return ParseHCL(data, path, d)
	default:
		return nil, fmt.Errorf("%w: unsupported job file %q", ErrInvalid, path)
	}
}

// ParseTOML decodes TOML job definitions. Unknown keys are rejected.
func ParseTOML(data []byte, d Defaults) ([]Job, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("job: toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("job: toml: unknown keys %s", strings.Join(keys, ", "))
	}
	return finish(f.Jobs, d)
}

// ParseHCL decodes HCL job definitions. filename is used in diagnostics.
func ParseHCL(data []byte, filename string, d Defaults) ([]Job, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("job: hcl: %w", diags)
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"sample_rate": cty.NumberFloatVal(d.SampleRate),
			"block_size":  cty.NumberUIntVal(uint64(d.BlockSize)),
		},
	}
	var parsed file
	if diags := gohcl.DecodeBody(f.Body, ctx, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("job: hcl: %w", diags)
	}
	return finish(parsed.Jobs, d)
}

func finish(jobs []Job, d Defaults) ([]Job, error) {
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: no jobs defined", ErrInvalid)
	}
	seen := make(map[string]bool, len(jobs))
	var errs []error
	for i := range jobs {
		j := &jobs[i]
		j.applyDefaults(i, d)
		if seen[j.Name] {
			errs = append(errs, fmt.Errorf("%w: job %q: duplicate name", ErrInvalid, j.Name))
			continue
		}
		seen[j.Name] = true
		if err := j.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (j *Job) applyDefaults(index int, d Defaults) {
	if j.Name == "" {
		j.Name = fmt.Sprintf("job-%d", index+1)
	}
	if j.Library == "" {
		j.Library = DefaultLibrary
	}
	if j.SampleRate == 0 {
		j.SampleRate = d.SampleRate
	}
	if j.BlockSize == 0 {
		j.BlockSize = d.BlockSize
	}
	for i := range j.Notes {
		if j.Notes[i].Velocity == 0 {
			j.Notes[i].Velocity = DefaultVelocity
		}
	}
}

// Validate reports the first problem with j.
func (j *Job) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: job %q: %s", ErrInvalid, j.Name, fmt.Sprintf(format, args...))
	}
	switch {
	case j.Plugin == "":
		return bad("plugin is required")
	case !(j.SampleRate > 0) || math.IsInf(j.SampleRate, 0):
		return bad("sample_rate must be positive")
	case j.BlockSize == 0:
		return bad("block_size must be positive")
	case j.Blocks < 0:
		return bad("blocks must not be negative")
	case j.Blocks == 0 && !(j.Duration > 0):
		return bad("duration or blocks is required")
	case j.Tempo < 0:
		return bad("tempo must not be negative")
	}
	for i, n := range j.Notes {
		switch {
		case n.Key > 127:
			return bad("note %d: key %d out of range", i, n.Key)
		case n.Velocity > 127:
			return bad("note %d: velocity %d out of range", i, n.Velocity)
		case n.Channel > 15:
			return bad("note %d: channel %d out of range", i, n.Channel)
		case n.Start < 0 || n.Length < 0:
			return bad("note %d: negative time", i)
		}
	}
	for i, p := range j.Params {
		if p.At < 0 {
			return bad("param %d: negative time", i)
		}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return bad("param %d: value is not finite", i)
		}
	}
	return nil
}

// Frames returns the total number of frames the job renders.
func (j *Job) Frames() int64 {
	if j.Blocks > 0 {
		return int64(j.Blocks) * int64(j.BlockSize)
	}
	return int64(math.Ceil(j.Duration * j.SampleRate))
}

// frameAt converts seconds to a frame index.
func (j *Job) frameAt(seconds float64) int64 {
	return int64(math.Round(seconds * j.SampleRate))
}
