package param

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/justyntemme/claphost/pkg/clap"
	"github.com/justyntemme/claphost/pkg/events"
)

// Source is the plugin side of a registry. *ext.Params implements it.
type Source interface {
	Count() (uint32, error)
	Info(index uint32) (clap.ParamInfo, bool, error)
	Value(id uint32) (float64, bool, error)
	ValueToText(id uint32, v float64) (string, bool, error)
	TextToValue(id uint32, text string) (float64, bool, error)
	CanFlush() bool
	Flush(in clap.InputEvents, out clap.OutputEvents) error
}

// set is an immutable snapshot of one enumeration.
type set struct {
	byID  map[uint32]*Parameter
	order []*Parameter
}

// DefaultQueueCapacity bounds the number of changes waiting for the next
// block.
const DefaultQueueCapacity = 256

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// WithProcessing reports whether the owning instance is processing. While it
// is, SetValue queues changes for the next block instead of flushing.
func WithProcessing(fn func() bool) Option {
	return func(r *Registry) {
		r.processing = fn
	}
}

// WithLiveness sets the check run before every call that reaches the
// plugin. The owning instance uses it to fail calls made after destroy.
func WithLiveness(fn func(op string) error) Option {
	return func(r *Registry) {
		r.alive = fn
	}
}

// WithQueueCapacity sets the capacity of the pending change queue.
func WithQueueCapacity(n int) Option {
	return func(r *Registry) {
		r.queueCap = n
	}
}

// Registry holds the current parameter set of one instance. A new registry
// is stale until Enumerate has run. The control context owns all methods
// except Drain and Observe, which the real-time context calls.
type Registry struct {
	src        Source
	log        zerolog.Logger
	processing func() bool
	alive      func(op string) error
	queueCap   int

	current atomic.Pointer[set]
	stale   atomic.Bool
	queue   *changeQueue

	mu  sync.Mutex
	err error

	flushBridge *events.Bridge
	flushOut    *events.ProcessResult
}

// NewRegistry binds a registry to src.
func NewRegistry(src Source, opts ...Option) *Registry {
	r := &Registry{
		src:        src,
		log:        zerolog.Nop(),
		processing: func() bool { return false },
		alive:      func(string) error { return nil },
		queueCap:   DefaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = newChangeQueue(r.queueCap)
	r.flushBridge = events.NewBridge(r.queueCap)
	r.flushOut = events.NewProcessResult(r.queueCap)
	r.stale.Store(true)
	return r
}

// Enumerate queries the plugin's parameter set and makes it current.
// Duplicate ids are a plugin error and leave the registry stale. Queued
// changes for parameters that disappeared are dropped when drained.
func (r *Registry) Enumerate() ([]Info, error) {
	if err := r.alive("param.enumerate"); err != nil {
		return nil, err
	}
	count, err := r.src.Count()
	if err != nil {
		return nil, err
	}

	next := &set{
		byID:  make(map[uint32]*Parameter, count),
		order: make([]*Parameter, 0, count),
	}
	for i := uint32(0); i < count; i++ {
		raw, ok, err := r.src.Info(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			r.log.Warn().Uint32("index", i).Msg("plugin failed to describe parameter")
			continue
		}
		if _, dup := next.byID[raw.ID]; dup {
			r.stale.Store(true)
			return nil, clap.Errorf(clap.ErrStaleParameterSet, "param.enumerate", "plugin reported parameter id %d twice", raw.ID)
		}
		p := &Parameter{Info: infoFromRaw(raw)}
		next.byID[raw.ID] = p
		next.order = append(next.order, p)
	}

	r.current.Store(next)
	r.stale.Store(false)

	r.log.Debug().Int("count", len(next.order)).Msg("parameters enumerated")
	return r.infos(next), nil
}

// Invalidate marks the set stale after a plugin rescan notification.
func (r *Registry) Invalidate() {
	if !r.stale.Swap(true) {
		r.log.Debug().Msg("parameter set invalidated")
	}
}

// Stale reports whether Enumerate must run before values can be used.
func (r *Registry) Stale() bool {
	return r.stale.Load()
}

// All returns the current parameter infos in plugin order.
func (r *Registry) All() ([]Info, error) {
	s, err := r.fresh("param.all")
	if err != nil {
		return nil, err
	}
	return r.infos(s), nil
}

// Count returns the number of parameters in the current set.
func (r *Registry) Count() (int, error) {
	s, err := r.fresh("param.count")
	if err != nil {
		return 0, err
	}
	return len(s.order), nil
}

// Get returns the info of id.
func (r *Registry) Get(id uint32) (Info, error) {
	p, err := r.lookup("param.get", id)
	if err != nil {
		return Info{}, err
	}
	return p.Info, nil
}

// Value returns the plugin's current value of id. When the plugin cannot
// answer, the last reported value or the default is returned.
func (r *Registry) Value(id uint32) (float64, error) {
	p, err := r.lookup("param.get_value", id)
	if err != nil {
		return 0, err
	}
	v, ok, err := r.src.Value(id)
	if err != nil {
		return 0, err
	}
	if ok {
		return v, nil
	}
	if v, ok := p.Reported(); ok {
		return v, nil
	}
	return p.DefaultValue, nil
}

// SetValue validates and delivers a change. Outside processing the change
// is flushed to the plugin immediately; while processing, or when the plugin
// cannot flush, it is queued for the next block at offset 0.
func (r *Registry) SetValue(id uint32, value float64) error {
	p, v, err := r.validate("param.set_value", id, value)
	if err != nil {
		return err
	}
	pc := events.NewParamChange(id, v, 0)
	pc.Cookie = p.Cookie

	if r.processing() || !r.src.CanFlush() {
		return r.enqueue(pc)
	}
	return r.flush(pc)
}

// Set is the chainable form of SetValue. The first failure is kept and
// later calls become no-ops until Err is read.
//
//	err := reg.Set(gainID, -6).Set(bypassID, 0).Err()
func (r *Registry) Set(id uint32, value float64) *Registry {
	r.mu.Lock()
	failed := r.err != nil
	r.mu.Unlock()
	if failed {
		return r
	}
	if err := r.SetValue(id, value); err != nil {
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
	}
	return r
}

// Err returns and clears the first error recorded by Set.
func (r *Registry) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.err
	r.err = nil
	return err
}

// ScheduleChange queues a change at offset within the next block. Changes
// keep their submission order; the offset is checked against the block size
// when the block is encoded.
func (r *Registry) ScheduleChange(id uint32, value float64, offset uint32) error {
	p, v, err := r.validate("param.schedule_change", id, value)
	if err != nil {
		return err
	}
	pc := events.NewParamChange(id, v, offset)
	pc.Cookie = p.Cookie
	return r.enqueue(pc)
}

// Pending returns the number of queued changes. It takes no locks.
func (r *Registry) Pending() int {
	return r.queue.len()
}

// Drain appends every queued change to ctx in submission order and empties
// the queue. It takes no locks and does not allocate when ctx has room, so
// the real-time context calls it while building each block. Only one
// goroutine may drain at a time.
func (r *Registry) Drain(ctx *events.ProcessContext) {
	ctx.ParamChanges = r.queue.drain(ctx.ParamChanges, r.current.Load())
}

// Observe records the values a plugin reported in result. It takes no locks
// and does not allocate, so it may run on the real-time context.
func (r *Registry) Observe(result *events.ProcessResult) {
	s := r.current.Load()
	if s == nil || result == nil {
		return
	}
	for i := range result.ParamChanges {
		if p, ok := s.byID[result.ParamChanges[i].ParamID]; ok {
			p.report(result.ParamChanges[i].Value)
		}
	}
}

// ValueText formats value with the plugin's formatter, falling back to a
// plain numeric rendering.
func (r *Registry) ValueText(id uint32, value float64) (string, error) {
	p, err := r.lookup("param.value_to_text", id)
	if err != nil {
		return "", err
	}
	text, ok, err := r.src.ValueToText(id, value)
	if err != nil {
		return "", err
	}
	if ok {
		return text, nil
	}
	return p.FormatValue(value), nil
}

// TextValue parses text with the plugin's parser, falling back to a plain
// number.
func (r *Registry) TextValue(id uint32, text string) (float64, error) {
	p, err := r.lookup("param.text_to_value", id)
	if err != nil {
		return 0, err
	}
	v, ok, err := r.src.TextToValue(id, text)
	if err != nil {
		return 0, err
	}
	if ok {
		return v, nil
	}
	return p.ParseValue(text)
}

func (r *Registry) fresh(op string) (*set, error) {
	if err := r.alive(op); err != nil {
		return nil, err
	}
	s := r.current.Load()
	if r.stale.Load() || s == nil {
		return nil, clap.NewError(clap.ErrStaleParameterSet, op)
	}
	return s, nil
}

func (r *Registry) lookup(op string, id uint32) (*Parameter, error) {
	s, err := r.fresh(op)
	if err != nil {
		return nil, err
	}
	p, ok := s.byID[id]
	if !ok {
		return nil, clap.Errorf(clap.ErrUnknownParameterID, op, "no parameter with id %d", id)
	}
	return p, nil
}

func (r *Registry) validate(op string, id uint32, value float64) (*Parameter, float64, error) {
	p, err := r.lookup(op, id)
	if err != nil {
		return nil, 0, err
	}
	if p.IsReadOnly() {
		return nil, 0, clap.Errorf(clap.ErrReadOnlyParameter, op, "parameter %d (%s)", id, p.Name)
	}
	v, err := p.Validate(value)
	if err != nil {
		return nil, 0, err
	}
	return p, v, nil
}

func (r *Registry) enqueue(pc events.ParamChange) error {
	if !r.queue.push(pc) {
		return clap.Errorf(clap.ErrEventOverflow, "param.schedule_change", "%d changes already queued", r.queue.len())
	}
	return nil
}

func (r *Registry) flush(pc events.ParamChange) error {
	ctx := events.ProcessContext{ParamChanges: []events.ParamChange{pc}}
	in, err := r.flushBridge.Encode(&ctx, 1)
	if err != nil {
		return err
	}
	out := r.flushBridge.Output()
	if err := r.src.Flush(in, out); err != nil {
		return err
	}
	r.flushOut.Reset()
	r.flushBridge.Decode(out, r.flushOut)
	r.Observe(r.flushOut)
	return nil
}

func (r *Registry) infos(s *set) []Info {
	out := make([]Info, len(s.order))
	for i, p := range s.order {
		out[i] = p.Info
	}
	return out
}
