package param

import (
	"sync"
	"sync/atomic"

	"github.com/justyntemme/claphost/pkg/events"
)

// changeQueue is a bounded ring of parameter changes waiting for the next
// block. Producers in the control context serialise on mu. The single
// consumer drains it from the real-time context without locking.
type changeQueue struct {
	mu   sync.Mutex
	buf  []events.ParamChange
	head atomic.Uint64 // next slot to read; advanced by the consumer only
	tail atomic.Uint64 // next slot to write; advanced by producers only
}

func newChangeQueue(capacity int) *changeQueue {
	return &changeQueue{buf: make([]events.ParamChange, max(capacity, 1))}
}

func (q *changeQueue) push(pc events.ParamChange) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.tail.Load()
	if t-q.head.Load() == uint64(len(q.buf)) {
		return false
	}
	q.buf[t%uint64(len(q.buf))] = pc
	q.tail.Store(t + 1)
	return true
}

func (q *changeQueue) len() int {
	h := q.head.Load()
	return int(q.tail.Load() - h)
}

// drain appends the queued changes to dst. Changes for ids missing from s
// were queued against an older parameter set and are dropped.
func (q *changeQueue) drain(dst []events.ParamChange, s *set) []events.ParamChange {
	h, t := q.head.Load(), q.tail.Load()
	n := uint64(len(q.buf))
	for ; h < t; h++ {
		pc := q.buf[h%n]
		if s != nil {
			if _, ok := s.byID[pc.ParamID]; !ok {
				continue
			}
		}
		dst = append(dst, pc)
	}
	q.head.Store(t)
	return dst
}
