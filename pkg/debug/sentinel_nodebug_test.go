//go:build !debug

package debug

import "testing"

func TestSentinelIsNoop(t *testing.T) {
	var s Sentinel
	s.EnterProcess()
	s.EnterProcess()
	s.EnterLifecycle("deactivate")
	s.ExitLifecycle()
	s.ExitProcess()

	if blocks, last, total := s.Stats(); blocks|last|total != 0 {
		t.Errorf("Stats() = %d, %d, %d, want zeros", blocks, last, total)
	}
	if Enabled {
		t.Error("Enabled should be false without the debug tag")
	}
}
