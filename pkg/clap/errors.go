package clap

import "fmt"

// Kind classifies host runtime errors. Kinds are comparable with errors.Is
// against any error produced by this module.
type Kind int

const (
	ErrLoad Kind = iota + 1
	ErrInstantiation
	ErrActivation
	ErrProcess
	ErrInvalidEventOffset
	ErrUnknownParameterID
	ErrValueOutOfRange
	ErrStaleParameterSet
	ErrThreadingViolation
	ErrState
	ErrEditorAlreadyOpen
	ErrUseAfterDestroy
	ErrInvalidState
	ErrInstanceFailed
	ErrEventOverflow
	ErrBufferLayout
	ErrReadOnlyParameter
	ErrEditorClosed
	ErrLibraryInUse
	ErrEditor
	ErrRejected
)

var kindNames = [...]string{
	ErrLoad:               "load error",
	ErrInstantiation:      "instantiation error",
	ErrActivation:         "activation error",
	ErrProcess:            "process error",
	ErrInvalidEventOffset: "invalid event offset",
	ErrUnknownParameterID: "unknown parameter id",
	ErrValueOutOfRange:    "value out of range",
	ErrStaleParameterSet:  "stale parameter set",
	ErrThreadingViolation: "threading violation",
	ErrState:              "state error",
	ErrEditorAlreadyOpen:  "editor already open",
	ErrUseAfterDestroy:    "use after destroy",
	ErrInvalidState:       "invalid lifecycle state",
	ErrInstanceFailed:     "instance failed",
	ErrEventOverflow:      "event capacity exceeded",
	ErrBufferLayout:       "buffer layout mismatch",
	ErrReadOnlyParameter:  "parameter is read-only",
	ErrEditorClosed:       "editor not open",
	ErrLibraryInUse:       "library has live instances",
	ErrEditor:             "editor error",
	ErrRejected:           "plugin rejected request",
}

func (k Kind) Error() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown error"
}

// Error is a Kind annotated with the failing operation and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Errorf builds an *Error whose cause is formatted from format and args.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// NewError builds an *Error without a cause.
func NewError(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare Kind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}
