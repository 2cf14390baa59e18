package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ticket_triage/core/domain"
	"ticket_triage/core/port/out"
)

type fakeMailbox struct {
	mu       sync.Mutex
	unread   []out.MessageRef
	messages map[string]*out.MailMessage
	calls    []string
	sent     []*out.OutgoingMessage

	listErr    error
	markErr    error
	markErrFor map[string]error
	sendErr    error
}

func newFakeMailbox(msgs ...*out.MailMessage) *fakeMailbox {
	m := &fakeMailbox{messages: make(map[string]*out.MailMessage)}
	for _, msg := range msgs {
		m.messages[msg.ID] = msg
		m.unread = append(m.unread, out.MessageRef{ID: msg.ID, ThreadID: msg.ThreadID})
	}
	return m
}

func (m *fakeMailbox) ListUnread(ctx context.Context, max int) ([]out.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "list")
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.unread) < max {
		max = len(m.unread)
	}
	return append([]out.MessageRef(nil), m.unread[:max]...), nil
}

func (m *fakeMailbox) GetMessage(ctx context.Context, id string) (*out.MailMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "get:"+id)
	msg, ok := m.messages[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return msg, nil
}

func (m *fakeMailbox) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "mark_read:"+id)
	if m.markErr != nil {
		return m.markErr
	}
	if err := m.markErrFor[id]; err != nil {
		return err
	}
	for i, ref := range m.unread {
		if ref.ID == id {
			m.unread = append(m.unread[:i], m.unread[i+1:]...)
			break
		}
	}
	return nil
}

func (m *fakeMailbox) Send(ctx context.Context, msg *out.OutgoingMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "send:"+strings.Join(msg.To, ","))
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, msg)
	return "sent-" + time.Now().Format("150405.000"), nil
}

type fakeLedger struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: make(map[string]bool)}
}

func (l *fakeLedger) Seen(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[id], l.err
}

func (l *fakeLedger) Record(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.seen[id] = true
	return nil
}

// fakeClassifier answers by description; descriptions not listed are Unknown.
type fakeClassifier struct {
	mu      sync.Mutex
	answers map[string]domain.TicketCategory
	fail    map[string]bool
	calls   []string
}

func (c *fakeClassifier) Classify(ctx context.Context, description string) (domain.TicketCategory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, description)
	if c.fail[description] {
		return domain.CategoryUnknown, &domain.ClassificationError{Raw: "", Err: errors.New("model unavailable")}
	}
	if category, ok := c.answers[description]; ok {
		return category, nil
	}
	return domain.CategoryUnknown, nil
}

// fakeClock fires immediately and records each wait.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waits   []time.Duration
	onAfter func(n int)
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	n, now, hook := len(c.waits), c.now, c.onAfter
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}
