package host

import (
	"errors"

	"github.com/google/uuid"

	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/events"
	"github.com/justyntemme/claphost/pkg/process"
)

var (
	errNotProcessing = &clap.Error{Kind: clap.ErrInvalidState, Op: "process", Err: errors.New("instance is not processing")}
	errDestroyed     = &clap.Error{Kind: clap.ErrUseAfterDestroy, Op: "process"}
	errFailed        = &clap.Error{Kind: clap.ErrInstanceFailed, Op: "process"}
	errReentered     = &clap.Error{Kind: clap.ErrThreadingViolation, Op: "process", Err: errors.New("process re-entered")}
	errPanicked      = &clap.Error{Kind: clap.ErrInstanceFailed, Op: "process", Err: errors.New("plugin panicked")}
	errTooManyErrors = &clap.Error{Kind: clap.ErrInstanceFailed, Op: "process", Err: errors.New("too many consecutive process errors")}
	errOverflow      = &clap.Error{Kind: clap.ErrEventOverflow, Op: "process", Err: errors.New("block holds more events than the instance was sized for")}
)

// Processor is the real-time view of an instance. It can only process; it
// exposes no lifecycle calls and no extension handles.
type Processor struct {
	in *Instance
}

// ID returns the id of the instance behind p.
func (p *Processor) ID() uuid.UUID {
	return p.in.id
}

// Process runs one block through the plugin. Changes queued on the parameter
// registry are drained into the block ahead of ctx's own changes; the drain
// takes no locks. The returned result is reused by the next call.
//
// When the plugin returns an error status both results are set: the result
// carries Status == events.StatusError together with whatever the plugin
// produced, and err is an ErrProcess. Callers that stop on err should still
// read the result first. Every other error comes with a nil result.
//
// Process never allocates or logs. A block with more events than the
// instance's event capacity fails with ErrEventOverflow and leaves the
// registry queue untouched. A plugin panic, a missing process function or a
// run of consecutive error statuses moves the instance to StateError.
func (p *Processor) Process(buffers *process.Buffers, ctx *events.ProcessContext) (result *events.ProcessResult, err error) {
	in := p.in
	switch in.State() {
	case StateProcessing:
	case StateDestroyed:
		return nil, errDestroyed
	case StateError:
		return nil, errFailed
	default:
		return nil, errNotProcessing
	}

	if !in.guard.Enter() {
		return nil, errReentered
	}
	in.sentinel.EnterProcess()
	defer func() {
		if r := recover(); r != nil {
			in.failRT(errPanicked)
			result, err = nil, errPanicked
		}
		in.sentinel.ExitProcess()
		in.guard.Exit()
	}()

	block := &in.block
	block.ParamChanges = block.ParamChanges[:0]
	block.MIDI, block.NoteExpressions, block.Transport = nil, nil, nil
	n := in.registry.Pending()
	if ctx != nil {
		n += ctx.Len()
	}
	if n > in.opts.maxEvents {
		return nil, errOverflow
	}
	in.registry.Drain(block)
	if ctx != nil {
		block.ParamChanges = append(block.ParamChanges, ctx.ParamChanges...)
		block.MIDI = ctx.MIDI
		block.NoteExpressions = ctx.NoteExpressions
		block.Transport = ctx.Transport
	}

	result, err = in.driver.Process(in.plugin, buffers, block)
	if result != nil {
		in.registry.Observe(result)
	}
	switch {
	case err == nil:
		in.consecutive.Store(0)
	case errors.Is(err, clap.ErrInstanceFailed):
		in.failRT(errFailed)
	case errors.Is(err, clap.ErrProcess):
		n := int(in.consecutive.Add(1))
		if t := in.opts.errorThreshold; t > 0 && n >= t {
			in.failRT(errTooManyErrors)
			return result, errTooManyErrors
		}
	}
	return result, err
}

// failRT records a real-time failure without logging.
func (in *Instance) failRT(err *clap.Error) {
	in.failure.Store(err)
	in.state.Store(int32(StateError))
}
