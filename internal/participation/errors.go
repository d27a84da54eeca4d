package participation

// Kind classifies a rejected participation action.
type Kind string

const (
	KindNotAuthorized Kind = "NOT_AUTHORIZED"
	KindInvalidState  Kind = "INVALID_STATE"
	KindNotFound      Kind = "NOT_FOUND"
	KindSessionClosed Kind = "SESSION_CLOSED"
)

// Error is a rejected action with a caller-facing reason.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind, so errors.Is(err, ErrInvalidState) holds for any
// invalid-state rejection regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotAuthorized = &Error{Kind: KindNotAuthorized}
	ErrInvalidState  = &Error{Kind: KindInvalidState}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrSessionClosed = &Error{Kind: KindSessionClosed}
)

func notAuthorized(msg string) error {
	return &Error{Kind: KindNotAuthorized, Message: msg}
}

func invalidState(msg string) error {
	return &Error{Kind: KindInvalidState, Message: msg}
}

func notFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func sessionClosed() error {
	return &Error{Kind: KindSessionClosed, Message: "session has already started"}
}
