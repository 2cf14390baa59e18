// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"
)

// =============================================================================
// Mailbox Port (Gmail)
// =============================================================================

// Mailbox is the mailbox the triage loop polls and answers from.
// Session lifecycle is the implementation's concern.
type Mailbox interface {
	// ListUnread returns at most max unread message references, newest first.
	ListUnread(ctx context.Context, max int) ([]MessageRef, error)
	// GetMessage fetches message metadata only (headers, snippet, payload type).
	GetMessage(ctx context.Context, id string) (*MailMessage, error)
	MarkRead(ctx context.Context, id string) error
	// Send delivers a message and returns the provider message id.
	Send(ctx context.Context, msg *OutgoingMessage) (string, error)
}

// MessageRef identifies a message without its content.
type MessageRef struct {
	ID       string
	ThreadID string
}

// MailMessage is the metadata view of a message.
type MailMessage struct {
	ID        string
	ThreadID  string
	Subject   string
	From      string
	Snippet   string
	MimeType  string
	MessageID string // RFC 5322 Message-ID header
	Headers   map[string]string
	Received  time.Time
}

// OutgoingMessage is a message to send.
type OutgoingMessage struct {
	From        string
	To          []string
	Subject     string
	Body        string
	ThreadID    string
	InReplyTo   string
	Attachments []OutgoingAttachment
}

// OutgoingAttachment is a file attached to an outgoing message.
type OutgoingAttachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// =============================================================================
// Provider Error
// =============================================================================

// ProviderErrorCode represents error codes.
type ProviderErrorCode string

const (
	ProviderErrAuth         ProviderErrorCode = "auth_error"
	ProviderErrTokenExpired ProviderErrorCode = "token_expired"
	ProviderErrRateLimit    ProviderErrorCode = "rate_limit"
	ProviderErrNotFound     ProviderErrorCode = "not_found"
	ProviderErrServer       ProviderErrorCode = "server_error"
	ProviderErrCircuitOpen  ProviderErrorCode = "circuit_open"
)

// ProviderError represents a provider error.
type ProviderError struct {
	Provider  string
	Code      ProviderErrorCode
	Message   string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error.
func NewProviderError(provider string, code ProviderErrorCode, message string, err error, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}
