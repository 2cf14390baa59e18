package dispatch

import (
	"context"
	"errors"

	"ticket_triage/core/port/in"
	"ticket_triage/core/port/out"
	"ticket_triage/core/service/classification"
	"ticket_triage/core/service/report"
	"ticket_triage/core/service/ticket"
	"ticket_triage/pkg/logger"
	"ticket_triage/pkg/metrics"

	"github.com/google/uuid"
)

// ErrNoMailbox is reported when a batch report cannot be mailed because no
// mailbox is configured.
var ErrNoMailbox = errors.New("mailbox not configured")

// ErrNoRecipient is reported when a batch has no recipient address.
var ErrNoRecipient = errors.New("no recipient address")

// BatchConfig configures a Batch.
type BatchConfig struct {
	From         string
	UnknownEmail string
	Metrics      *metrics.TriageMetrics
}

// Batch classifies uploaded tickets and mails the report to the uploader.
type Batch struct {
	mailbox      out.Mailbox
	classifier   in.TicketClassifier
	router       *classification.Router
	from         string
	unknownEmail string
	metrics      *metrics.TriageMetrics
	log          *logger.Logger
}

var _ in.BatchService = (*Batch)(nil)

// NewBatch creates a batch service. mailbox may be nil, in which case
// reports are built but never delivered.
func NewBatch(mailbox out.Mailbox, classifier in.TicketClassifier, router *classification.Router, cfg BatchConfig) *Batch {
	return &Batch{
		mailbox:      mailbox,
		classifier:   classifier,
		router:       router,
		from:         cfg.From,
		unknownEmail: cfg.UnknownEmail,
		metrics:      cfg.Metrics,
		log:          logger.WithField("component", "batch"),
	}
}

// Process classifies every record in input order. A record that fails to
// classify is kept as Unknown, so the report always has one row per record.
// A delivery failure is reported in the result, not as an error.
func (b *Batch) Process(ctx context.Context, req *in.BatchRequest) (*in.BatchResult, error) {
	if req == nil {
		return nil, errors.New("nil batch request")
	}

	runID := uuid.NewString()
	log := b.log.WithFields(map[string]any{"run_id": runID, "source": req.Source})
	tickets := ticket.FromRecords(req.Records)
	rep := report.New(runID, req.Source, b.unknownEmail, len(tickets))

	log.Info("classifying %d tickets", len(tickets))
	for _, t := range tickets {
		category, err := b.classifier.Classify(ctx, t.Description)
		if err != nil {
			log.WithError(err).Warn("ticket %s recorded as unknown", t.ID)
		}
		rep.Add(b.router.RouteTicket(t, category))
	}

	result := &in.BatchResult{RunID: runID, Report: rep}
	if err := b.deliver(ctx, req.Recipient, rep); err != nil {
		log.WithError(err).Error("report not delivered to %s", req.Recipient)
		result.SendError = err.Error()
	} else {
		log.Info("report sent to %s", req.Recipient)
		result.Delivered = true
	}
	b.metrics.ObserveBatch(result.Delivered)
	return result, nil
}

func (b *Batch) deliver(ctx context.Context, recipient string, rep *report.Report) error {
	if b.mailbox == nil {
		return ErrNoMailbox
	}
	if recipient == "" {
		return ErrNoRecipient
	}

	data, err := rep.RenderCSV()
	if err != nil {
		return err
	}
	_, err = b.mailbox.Send(ctx, &out.OutgoingMessage{
		From:    b.from,
		To:      []string{recipient},
		Subject: report.MailSubject,
		Body:    report.MailBody,
		Attachments: []out.OutgoingAttachment{{
			Filename: report.AttachmentName,
			MimeType: report.ContentTypeCSV,
			Data:     data,
		}},
	})
	return err
}
