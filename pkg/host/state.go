package host

// State is the lifecycle state of an instance.
type State int32

const (
	StateLoaded State = iota
	StateCreated
	StateActivated
	StateProcessing
	StateDeactivated
	StateDestroyed
	// StateError is absorbing: only Destroy is accepted.
	StateError
)

var stateNames = [...]string{
	StateLoaded:      "loaded",
	StateCreated:     "created",
	StateActivated:   "activated",
	StateProcessing:  "processing",
	StateDeactivated: "deactivated",
	StateDestroyed:   "destroyed",
	StateError:       "error",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Active reports whether the plugin holds its activation resources.
func (s State) Active() bool {
	return s == StateActivated || s == StateProcessing
}
