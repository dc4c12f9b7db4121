package common

// Kind partitions engine failures into the coarse categories callers use to
// decide whether a retry can succeed. Validation and State failures are
// deterministic for a given ledger state; Transfer failures may be transient.
type Kind uint8

const (
	// KindValidation marks malformed or out-of-range parameters.
	KindValidation Kind = iota + 1
	// KindAuthorization marks callers lacking a required role.
	KindAuthorization
	// KindState marks operations that are invalid in the current state.
	KindState
	// KindTransfer marks failed external asset movements.
	KindTransfer
	// KindOverflow marks arithmetic exceeding the 256-bit value bound.
	KindOverflow
)

// String names the kind for logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindTransfer:
		return "transfer"
	case KindOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Error couples a stable taxonomy kind with a human readable message. Engine
// packages declare their sentinels through the kind constructors below so that
// errors.Is matches both the sentinel itself and its kind.
type Error struct {
	kind   Kind
	msg    string
	isKind bool
}

// Kind-level sentinels. errors.Is(err, ErrValidation) holds for every error
// constructed with Validation, and likewise for the other kinds.
var (
	ErrValidation    = &Error{kind: KindValidation, msg: "validation error", isKind: true}
	ErrAuthorization = &Error{kind: KindAuthorization, msg: "authorization error", isKind: true}
	ErrState         = &Error{kind: KindState, msg: "state error", isKind: true}
	ErrTransfer      = &Error{kind: KindTransfer, msg: "transfer failure", isKind: true}
	ErrOverflow      = &Error{kind: KindOverflow, msg: "arithmetic overflow", isKind: true}
)

// Validation constructs a parameter-validation error.
func Validation(msg string) *Error { return &Error{kind: KindValidation, msg: msg} }

// Authorization constructs a missing-role error.
func Authorization(msg string) *Error { return &Error{kind: KindAuthorization, msg: msg} }

// State constructs an invalid-state error.
func State(msg string) *Error { return &Error{kind: KindState, msg: msg} }

// Transfer constructs an external transfer failure.
func Transfer(msg string) *Error { return &Error{kind: KindTransfer, msg: msg} }

// Overflow constructs an arithmetic bound error.
func Overflow(msg string) *Error { return &Error{kind: KindOverflow, msg: msg} }

// Error satisfies the error interface.
func (e *Error) Error() string { return e.msg }

// ErrorKind exposes the taxonomy kind for callers that switch on it directly.
func (e *Error) ErrorKind() Kind { return e.kind }

// Is reports whether target is the kind sentinel matching this error. Direct
// sentinel equality is handled by errors.Is itself before this is consulted.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.isKind && t.kind == e.kind
}

// KindOf extracts the taxonomy kind from err, unwrapping as needed. It returns
// zero when err carries no kind.
func KindOf(err error) Kind {
	for err != nil {
		if typed, ok := err.(*Error); ok {
			return typed.kind
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = unwrapper.Unwrap()
	}
	return 0
}
