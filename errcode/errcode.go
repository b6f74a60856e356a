package errcode

// Code is a stable status identifier returned by peripheral operations.
// It is a string newtype, comparable, allocation-free, and implements error,
// so it can be returned from interrupt paths without allocating.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK          Code = "ok"
	Busy        Code = "busy"
	Unsupported Code = "unsupported"

	// Capacity exhaustion.
	BusyQueued   Code = "busy_queued"
	QueueFull    Code = "queue_full"
	RegistryFull Code = "registry_full"

	// Streaming waits.
	Timeout         Code = "timeout"
	UnexpectedState Code = "unexpected_state"

	NotReady      Code = "not_ready"
	UnknownUnit   Code = "unknown_unit"
	InvalidParams Code = "invalid_params"
	InvalidTopic  Code = "invalid_topic"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap attaches an operation name to err, keeping its code.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: Of(err), Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Recoverable reports whether a caller may simply retry the operation.
func Recoverable(err error) bool {
	switch Of(err) {
	case BusyQueued, QueueFull, Timeout, UnexpectedState, Busy:
		return true
	}
	return false
}
