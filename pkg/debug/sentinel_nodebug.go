//go:build !debug

package debug

// Enabled reports whether assertions are compiled in.
const Enabled = false

// Sentinel is a no-op when not in debug mode
type Sentinel struct{}

// EnterProcess is a no-op when not in debug mode
func (s *Sentinel) EnterProcess() {}

// ExitProcess is a no-op when not in debug mode
func (s *Sentinel) ExitProcess() {}

// EnterLifecycle is a no-op when not in debug mode
func (s *Sentinel) EnterLifecycle(op string) {}

// ExitLifecycle is a no-op when not in debug mode
func (s *Sentinel) ExitLifecycle() {}

// Stats returns zeros when not in debug mode
func (s *Sentinel) Stats() (blocks, last, total uint64) {
	return 0, 0, 0
}
