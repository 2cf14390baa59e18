package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ticket_triage/core/domain"
	"ticket_triage/core/port/in"
	"ticket_triage/core/port/out"
	"ticket_triage/core/service/classification"
	"ticket_triage/core/service/ticket"
	"ticket_triage/pkg/logger"
	"ticket_triage/pkg/metrics"
)

const (
	// DefaultPollInterval is the wait between poll cycles.
	DefaultPollInterval = 5 * time.Second

	// DefaultMaxAttempts is how many cycles in a row a message may fail to
	// fetch or mark read before the poller skips it.
	DefaultMaxAttempts = 3
)

// PollerConfig configures a Poller.
type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	From       string // reply sender; empty lets the mailbox use the account address
	WebFormURL string
	Metrics    *metrics.TriageMetrics
	Logger     *logger.Logger
}

// Poller answers unread mailbox tickets one at a time.
//
// Each cycle takes at most one unread message. The message id is recorded in
// the ledger before the message is marked read and answered, so a message
// is replied to at most once even if marking it read fails.
//
// A message that cannot be fetched or marked read MaxAttempts cycles in a
// row is skipped while it stays unread, so it cannot hold up newer tickets.
type Poller struct {
	mailbox    out.Mailbox
	classifier in.TicketClassifier
	router     *classification.Router
	ledger     out.ProcessedLedger
	clock      Clock

	interval    time.Duration
	maxAttempts int
	from        string
	webFormURL  string
	metrics     *metrics.TriageMetrics
	log         *logger.Logger

	mu       sync.Mutex
	failures map[string]int
	skipped  map[string]struct{}
}

var _ in.PollService = (*Poller)(nil)

// NewPoller creates a poller. A nil clock uses RealClock.
func NewPoller(
	mailbox out.Mailbox,
	classifier in.TicketClassifier,
	router *classification.Router,
	ledger out.ProcessedLedger,
	clock Clock,
	cfg PollerConfig,
) *Poller {
	if clock == nil {
		clock = RealClock()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Poller{
		mailbox:     mailbox,
		classifier:  classifier,
		router:      router,
		ledger:      ledger,
		clock:       clock,
		interval:    interval,
		maxAttempts: maxAttempts,
		from:        cfg.From,
		webFormURL:  cfg.WebFormURL,
		metrics:     cfg.Metrics,
		log:         log.WithField("component", "poller"),
		failures:    make(map[string]int),
		skipped:     make(map[string]struct{}),
	}
}

// Run polls until ctx is cancelled. It returns nil on cancellation and the
// error itself when the mailbox session fails authentication. Any other
// failure is logged and the loop waits for the next cycle.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("[Poller] Starting, interval %s", p.interval)
	for {
		if ctx.Err() != nil {
			p.log.Info("[Poller] Stopped")
			return nil
		}

		if _, err := p.RunOnce(ctx); err != nil {
			if domain.IsAuthenticationError(err) {
				p.log.WithError(err).Error("[Poller] Mailbox session rejected, stopping")
				return err
			}
			if ctx.Err() == nil {
				p.log.WithError(err).Warn("[Poller] Cycle failed")
			}
		}

		select {
		case <-ctx.Done():
			p.log.Info("[Poller] Stopped")
			return nil
		case <-p.clock.After(p.interval):
		}
	}
}

// RunOnce performs one poll cycle and returns one of the metrics.Poll*
// outcomes. Errors are *domain.DispatchError values.
func (p *Poller) RunOnce(ctx context.Context) (string, error) {
	result, err := p.runOnce(ctx)
	p.metrics.ObservePoll(result)
	return result, err
}

func (p *Poller) runOnce(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// One slot past the skipped messages leaves room for the next ticket.
	refs, err := p.mailbox.ListUnread(ctx, len(p.skipped)+1)
	if err != nil {
		return metrics.PollError, p.dispatchError(domain.OpFetch, "", err)
	}
	p.forgetMissing(refs)

	id, ok := p.next(refs)
	if !ok {
		if len(refs) == 0 {
			p.log.Info("no messages found")
		} else {
			p.log.Info("no messages found, %d skipped", len(refs))
		}
		return metrics.PollEmpty, nil
	}

	result, err := p.process(ctx, id)
	p.noteResult(id, err)
	return result, err
}

// next returns the newest unread message that is not being skipped.
func (p *Poller) next(refs []out.MessageRef) (string, bool) {
	for _, ref := range refs {
		if _, skip := p.skipped[ref.ID]; !skip {
			return ref.ID, true
		}
	}
	return "", false
}

// forgetMissing drops failure state for messages that are no longer listed,
// which keeps both maps bounded by the unread page.
func (p *Poller) forgetMissing(refs []out.MessageRef) {
	listed := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		listed[ref.ID] = struct{}{}
	}
	for id := range p.failures {
		if _, ok := listed[id]; !ok {
			delete(p.failures, id)
		}
	}
	for id := range p.skipped {
		if _, ok := listed[id]; !ok {
			delete(p.skipped, id)
		}
	}
}

// noteResult counts fetch and mark-read failures against id. Ledger and
// send failures are not the message's fault and leave the count alone.
func (p *Poller) noteResult(id string, err error) {
	if !messageFault(err) {
		if err == nil {
			delete(p.failures, id)
		}
		return
	}
	p.failures[id]++
	if p.failures[id] < p.maxAttempts {
		return
	}
	delete(p.failures, id)
	p.skipped[id] = struct{}{}
	p.metrics.ObserveDispatchError(string(domain.OpSkip))
	p.log.WithError(err).WithField("message_id", id).
		Error("giving up on message after %d failed attempts, skipping while unread", p.maxAttempts)
}

func messageFault(err error) bool {
	var dispatchErr *domain.DispatchError
	if err == nil || domain.IsAuthenticationError(err) || !errors.As(err, &dispatchErr) {
		return false
	}
	return dispatchErr.MessageID != "" &&
		(dispatchErr.Op == domain.OpFetch || dispatchErr.Op == domain.OpMarkRead)
}

func (p *Poller) process(ctx context.Context, id string) (string, error) {
	log := p.log.WithField("message_id", id)

	seen, err := p.ledger.Seen(ctx, id)
	if err != nil {
		return metrics.PollError, p.dispatchError(domain.OpLedger, id, err)
	}
	if seen {
		log.Warn("already answered, marking read again")
		if err := p.mailbox.MarkRead(ctx, id); err != nil {
			return metrics.PollError, p.dispatchError(domain.OpMarkRead, id, err)
		}
		return metrics.PollReplayed, nil
	}

	msg, err := p.mailbox.GetMessage(ctx, id)
	if err != nil {
		return metrics.PollError, p.dispatchError(domain.OpFetch, id, err)
	}
	t := ticket.FromMessage(msg)
	body := p.replyBody(ctx, t)

	if err := p.ledger.Record(ctx, id); err != nil {
		return metrics.PollError, p.dispatchError(domain.OpLedger, id, err)
	}

	// The ledger entry keeps a failed mark-read from producing a second reply.
	var errs []error
	if err := p.mailbox.MarkRead(ctx, id); err != nil {
		if domain.IsAuthenticationError(err) {
			return metrics.PollError, p.dispatchError(domain.OpMarkRead, id, err)
		}
		errs = append(errs, p.dispatchError(domain.OpMarkRead, id, err))
	}

	reply := &out.OutgoingMessage{
		From:      p.from,
		To:        []string{t.Sender},
		Subject:   t.ReplySubject(),
		Body:      body,
		ThreadID:  msg.ThreadID,
		InReplyTo: msg.MessageID,
	}
	sentID, err := p.mailbox.Send(ctx, reply)
	if err != nil {
		errs = append(errs, p.dispatchError(domain.OpSend, id, err))
		return metrics.PollError, errors.Join(errs...)
	}

	log.Info("replied to %s (sent %s)", t.Sender, sentID)
	if len(errs) > 0 {
		return metrics.PollError, errors.Join(errs...)
	}
	return metrics.PollProcessed, nil
}

// replyBody classifies t when its body structure allows it and builds the
// reply text. Anything that cannot be routed gets the web form reply.
func (p *Poller) replyBody(ctx context.Context, t domain.Ticket) string {
	if !t.IsClassifiableMessage() {
		p.log.Debug("content kind %q is not classified", t.ContentKind)
		return WebFormReply(p.webFormURL)
	}

	category, err := p.classifier.Classify(ctx, t.Description)
	if err != nil {
		p.log.WithError(err).Warn("classification failed for message %s", t.ID)
	}

	decision := p.router.RouteTicket(t, category)
	if !decision.Routable {
		return WebFormReply(p.webFormURL)
	}
	return CategoryReply(category)
}

func (p *Poller) dispatchError(op domain.DispatchOp, id string, err error) error {
	p.metrics.ObserveDispatchError(string(op))
	return &domain.DispatchError{Op: op, MessageID: id, Err: err}
}

// CategoryReply is the reply body for a ticket routed to a team.
func CategoryReply(category domain.TicketCategory) string {
	return fmt.Sprintf("Hi,\n\nThank you for reaching out. %s.\n\nIf any mistake kindly contact the admin.\n", category.ReplyPhrase())
}

// WebFormReply is the reply body for a ticket that could not be classified.
func WebFormReply(webFormURL string) string {
	form := "the web form"
	if webFormURL != "" {
		form += " at " + webFormURL
	}
	return fmt.Sprintf("Hi, How can I help you?\n\nWe could not classify your request automatically. Please submit it through %s.\n\nIf any mistake kindly contact the admin.\n", form)
}
