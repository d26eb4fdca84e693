package pipeline

import "errors"

// Kind classifies pipeline failures into stable categories.
type Kind int

const (
	// KindValidation is client-caused: oversized or invalid-format input.
	// Reported immediately, never retried.
	KindValidation Kind = iota
	// KindDecode is a malformed or unsupported audio payload after the
	// degraded fallback was attempted.
	KindDecode
	// KindIO is a temporary-resource allocation or cleanup failure. A
	// server fault.
	KindIO
	// KindEngine is an external transcription engine failure. Surfaced as
	// a generic server fault; the original detail is logged, not exposed.
	KindEngine
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDecode:
		return "decode"
	case KindIO:
		return "io"
	case KindEngine:
		return "engine"
	default:
		return "unknown"
	}
}

// ErrTooLarge marks input rejected for exceeding the decoded size ceiling.
var ErrTooLarge = errors.New("audio data exceeds maximum size")

// Error is a pipeline failure tagged with its kind. Message is safe to show
// to the caller; Err carries the underlying detail for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind from err. Unclassified errors count as
// engine faults so they surface as generic server errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindEngine
}
