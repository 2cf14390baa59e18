package in

import (
	"context"

	"ticket_triage/core/domain"
	"ticket_triage/core/service/report"
)

// BatchRequest is one uploaded ticket batch.
type BatchRequest struct {
	Records   []map[string]string
	Recipient string
	Source    string // original file name, for logging
}

// BatchResult is the outcome of a batch run. Delivered is false when the
// report mail could not be sent; the report itself is always complete.
type BatchResult struct {
	RunID     string
	Report    *report.Report
	Delivered bool
	SendError string
}

// BatchService classifies a batch of tickets and mails the report.
type BatchService interface {
	Process(ctx context.Context, req *BatchRequest) (*BatchResult, error)
}

// TicketClassifier classifies a single ticket description.
type TicketClassifier interface {
	Classify(ctx context.Context, description string) (domain.TicketCategory, error)
}

// PollService drives the live mailbox flow.
type PollService interface {
	// RunOnce performs a single poll cycle and reports its outcome.
	RunOnce(ctx context.Context) (string, error)
	// Run polls until ctx is done or an authentication error occurs.
	Run(ctx context.Context) error
}
