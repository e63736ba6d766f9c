package session

import "fmt"

// ErrorType categorizes session errors.
type ErrorType string

const (
	ErrMalformedMessage    ErrorType = "malformed_message"
	ErrInvalidSessionState ErrorType = "invalid_session_state"
	ErrResumptionExpired   ErrorType = "resumption_expired"
	ErrTransportClosed     ErrorType = "transport_closed"
	ErrInvalidConfig       ErrorType = "invalid_config"
	ErrDuplicateResponse   ErrorType = "duplicate_tool_response"
)

// Error is a structured session error.
type Error struct {
	Type    ErrorType
	Message string
	Param   string
}

func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewMalformedMessageError reports an undecodable or invalid frame.
// Malformed frames are connection-fatal.
func NewMalformedMessageError(message string) *Error {
	return &Error{Type: ErrMalformedMessage, Message: message}
}

// NewInvalidStateError reports an operation attempted in a state that
// does not permit it. The triggering message is dropped; the session
// is unaffected.
func NewInvalidStateError(op string, state State) *Error {
	return &Error{
		Type:    ErrInvalidSessionState,
		Message: fmt.Sprintf("%s is not permitted in state %s", op, state),
	}
}

// NewInvalidConfigError reports a rejected session configuration.
func NewInvalidConfigError(message, param string) *Error {
	return &Error{Type: ErrInvalidConfig, Message: message, Param: param}
}

// NewResumptionExpiredError reports a resume attempt with a dead handle.
func NewResumptionExpiredError(handle string) *Error {
	return &Error{
		Type:    ErrResumptionExpired,
		Message: fmt.Sprintf("resumption handle %q is no longer valid", handle),
	}
}

// NewTransportClosedError reports an unexpected transport failure.
func NewTransportClosedError(err error) *Error {
	return &Error{
		Type:    ErrTransportClosed,
		Message: fmt.Sprintf("transport closed: %v", err),
	}
}

// NewDuplicateResponseError reports a second response for an already
// resolved tool call ID.
func NewDuplicateResponseError(id string) *Error {
	return &Error{
		Type:    ErrDuplicateResponse,
		Message: fmt.Sprintf("tool call %q already has a response", id),
		Param:   id,
	}
}
