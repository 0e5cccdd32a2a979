package domain

import "fmt"

// ValidationError indicates a missing or empty required input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// NotFoundError indicates an operation referenced a session that does
// not exist where existence was required.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// BadAgentResponseError indicates the agent reply could not be parsed
// into the expected structure. The raw reply is kept for logging but
// must not be echoed to clients.
type BadAgentResponseError struct {
	Raw string
	Err error
}

func (e *BadAgentResponseError) Error() string {
	return "agent returned a malformed response"
}

func (e *BadAgentResponseError) Unwrap() error { return e.Err }

// GatewayError indicates the external agent call itself failed.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("agent call failed: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
