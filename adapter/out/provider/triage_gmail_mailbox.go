// Package provider implements the Gmail mailbox and its OAuth session.
package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"ticket_triage/core/domain"
	"ticket_triage/core/port/out"
	"ticket_triage/pkg/logger"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	providerName = "gmail"
	gmailUser    = "me"
	unreadQuery  = "is:unread"
	labelUnread  = "UNREAD"
)

// metadataHeaders are the headers requested with format=metadata.
var metadataHeaders = []string{"From", "Subject", "Date", "Message-ID", "Content-Type"}

// GmailConfig configures a GmailMailbox.
type GmailConfig struct {
	// From is written into outgoing messages when they carry no sender.
	From string
}

// GmailMailbox implements out.Mailbox on the Gmail API.
type GmailMailbox struct {
	svc  *gmail.Service
	cb   *gobreaker.CircuitBreaker
	from string
	log  *logger.Logger
}

var _ out.Mailbox = (*GmailMailbox)(nil)

// NewGmailMailbox creates a mailbox authorized by ts. Extra options are
// passed to the Gmail client (endpoint overrides in tests).
func NewGmailMailbox(ctx context.Context, ts oauth2.TokenSource, cfg GmailConfig, opts ...option.ClientOption) (*GmailMailbox, error) {
	if ts != nil {
		opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	log := logger.WithField("component", "gmail")
	settings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,                // requests allowed while half-open
		Interval:    60 * time.Second, // closed-state counter reset
		Timeout:     30 * time.Second, // open-state duration
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &GmailMailbox{
		svc:  svc,
		cb:   gobreaker.NewCircuitBreaker(settings),
		from: cfg.From,
		log:  log,
	}, nil
}

// ListUnread returns up to max unread messages, newest first.
func (m *GmailMailbox) ListUnread(ctx context.Context, max int) ([]out.MessageRef, error) {
	var resp *gmail.ListMessagesResponse
	err := m.execute("ListUnread", func() error {
		var apiErr error
		resp, apiErr = m.svc.Users.Messages.List(gmailUser).
			Q(unreadQuery).
			MaxResults(int64(max)).
			Context(ctx).
			Do()
		return apiErr
	})
	if err != nil {
		return nil, m.wrapError(err, "failed to list unread messages")
	}

	refs := make([]out.MessageRef, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		refs = append(refs, out.MessageRef{ID: msg.Id, ThreadID: msg.ThreadId})
	}
	return refs, nil
}

// GetMessage fetches message metadata. The body is never downloaded.
func (m *GmailMailbox) GetMessage(ctx context.Context, id string) (*out.MailMessage, error) {
	var msg *gmail.Message
	err := m.execute("GetMessage", func() error {
		var apiErr error
		msg, apiErr = m.svc.Users.Messages.Get(gmailUser, id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
		return apiErr
	})
	if err != nil {
		return nil, m.wrapError(err, "failed to get message")
	}
	return convertMessage(msg), nil
}

// MarkRead removes the UNREAD label.
func (m *GmailMailbox) MarkRead(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{labelUnread}}
	err := m.execute("MarkRead", func() error {
		_, apiErr := m.svc.Users.Messages.Modify(gmailUser, id, req).Context(ctx).Do()
		return apiErr
	})
	return m.wrapError(err, "failed to mark message read")
}

// Send delivers msg and returns the Gmail message id.
func (m *GmailMailbox) Send(ctx context.Context, msg *out.OutgoingMessage) (string, error) {
	from := msg.From
	if from == "" {
		from = m.from
	}
	gmailMsg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(buildRawMessage(from, msg))),
		ThreadId: msg.ThreadID,
	}

	var sent *gmail.Message
	err := m.execute("Send", func() error {
		var apiErr error
		sent, apiErr = m.svc.Users.Messages.Send(gmailUser, gmailMsg).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return "", m.wrapError(err, "failed to send message")
	}
	return sent.Id, nil
}

// CircuitState reports the Gmail circuit breaker state.
func (m *GmailMailbox) CircuitState() string {
	return m.cb.State().String()
}

// execute runs fn through the circuit breaker. Client errors are returned
// without counting as breaker failures.
func (m *GmailMailbox) execute(operation string, fn func() error) error {
	_, err := m.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
					return nil, &nonCircuitError{err: err}
				}
			}
			if isTokenError(err) {
				return nil, &nonCircuitError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	if err != nil {
		m.log.Warn("[GmailMailbox] %s failed: state=%s, err=%v", operation, m.cb.State().String(), err)
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

// wrapError maps Gmail failures to provider errors. A rejected or
// unrefreshable token becomes a *domain.AuthenticationError.
func (m *GmailMailbox) wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}

	var authErr *domain.AuthenticationError
	if errors.As(err, &authErr) {
		return err
	}
	if isTokenError(err) {
		return &domain.AuthenticationError{
			Reason: "token could not be refreshed",
			Err:    out.NewProviderError(providerName, out.ProviderErrTokenExpired, defaultMsg, err, false),
		}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out.NewProviderError(providerName, out.ProviderErrCircuitOpen, "Circuit open", err, true)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return &domain.AuthenticationError{
				Reason: "token rejected",
				Err:    out.NewProviderError(providerName, out.ProviderErrTokenExpired, "Token expired", err, false),
			}
		case http.StatusForbidden:
			if strings.Contains(apiErr.Message, "Rate Limit") {
				return out.NewProviderError(providerName, out.ProviderErrRateLimit, "Rate limit exceeded", err, true)
			}
			return out.NewProviderError(providerName, out.ProviderErrAuth, "Access denied", err, false)
		case http.StatusNotFound:
			return out.NewProviderError(providerName, out.ProviderErrNotFound, "Not found", err, false)
		case http.StatusTooManyRequests:
			return out.NewProviderError(providerName, out.ProviderErrRateLimit, "Too many requests", err, true)
		}
	}

	return out.NewProviderError(providerName, out.ProviderErrServer, defaultMsg, err, true)
}

// isTokenError reports whether err came from a failed token refresh.
func isTokenError(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return true
	}
	var authErr *domain.AuthenticationError
	return errors.As(err, &authErr)
}

func convertMessage(msg *gmail.Message) *out.MailMessage {
	result := &out.MailMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Headers:  make(map[string]string),
	}
	if msg.InternalDate > 0 {
		result.Received = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload == nil {
		return result
	}

	result.MimeType = msg.Payload.MimeType
	for _, h := range msg.Payload.Headers {
		result.Headers[h.Name] = h.Value
	}
	result.Subject = getHeader(msg.Payload.Headers, "Subject")
	result.From = getHeader(msg.Payload.Headers, "From")
	result.MessageID = getHeader(msg.Payload.Headers, "Message-ID")
	return result
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// buildRawMessage renders msg as an RFC 5322 message. Messages with
// attachments are multipart/mixed with base64 parts.
func buildRawMessage(from string, msg *out.OutgoingMessage) string {
	var buf strings.Builder

	if from != "" {
		buf.WriteString(fmt.Sprintf("From: %s\r\n", formatAddress(from)))
	}
	if len(msg.To) > 0 {
		to := make([]string, 0, len(msg.To))
		for _, addr := range msg.To {
			to = append(to, formatAddress(addr))
		}
		buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	}
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject)))
	if inReplyTo := headerValue(msg.InReplyTo); inReplyTo != "" {
		buf.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", inReplyTo))
		buf.WriteString(fmt.Sprintf("References: %s\r\n", inReplyTo))
	}
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachments) == 0 {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(msg.Body)
		return buf.String()
	}

	boundary := "triage_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	buf.WriteString("\r\n")

	for _, att := range msg.Attachments {
		mimeType := att.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		filename := strings.ReplaceAll(headerValue(att.Filename), `"`, "")
		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString(fmt.Sprintf("Content-Type: %s; name=\"%s\"\r\n", headerValue(mimeType), filename))
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		buf.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", filename))
		buf.WriteString("\r\n")
		writeBase64Lines(&buf, att.Data)
	}

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return buf.String()
}

// formatAddress renders an address for a header. Values copied from inbound
// mail go through net/mail so they cannot inject extra header lines.
func formatAddress(s string) string {
	addr, err := mail.ParseAddress(headerValue(s))
	if err != nil {
		return headerValue(s)
	}
	if addr.Name == "" {
		return addr.Address
	}
	return addr.String()
}

// headerValue drops line breaks from a header value.
func headerValue(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", "", "\n", "").Replace(s))
}

// writeBase64Lines writes data as base64 in 76-character lines.
func writeBase64Lines(buf *strings.Builder, data []byte) {
	const lineLen = 76
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > lineLen {
		buf.WriteString(encoded[:lineLen])
		buf.WriteString("\r\n")
		encoded = encoded[lineLen:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")
}
