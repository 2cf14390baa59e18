package domain

import (
	"errors"
	"fmt"
)

// AuthenticationError means the mailbox session is unusable. It is the only
// error allowed to stop the dispatch loop.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mailbox authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "mailbox authentication failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ClassificationError carries the raw model response for diagnostics.
type ClassificationError struct {
	Raw string
	Err error
}

func (e *ClassificationError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("classification failed (raw=%q): %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// DispatchOp names the mailbox operation a DispatchError came from.
type DispatchOp string

const (
	OpFetch    DispatchOp = "fetch"
	OpMarkRead DispatchOp = "mark_read"
	OpSend     DispatchOp = "send"
	OpLedger   DispatchOp = "ledger"
	OpSkip     DispatchOp = "skip"
)

// DispatchError wraps a failed mailbox side effect. Logged, never fatal.
type DispatchError struct {
	Op        DispatchOp
	MessageID string
	Err       error
}

func (e *DispatchError) Error() string {
	if e.MessageID != "" {
		return fmt.Sprintf("dispatch %s failed for message %s: %v", e.Op, e.MessageID, e.Err)
	}
	return fmt.Sprintf("dispatch %s failed: %v", e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ErrEmptyResponse is returned when a model answers with no usable text.
var ErrEmptyResponse = errors.New("empty model response")

// IsAuthenticationError reports whether err is or wraps an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
