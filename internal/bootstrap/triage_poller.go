package bootstrap

import (
	"ticket_triage/core/service/classification"
	"ticket_triage/core/service/dispatch"
	"ticket_triage/pkg/metrics"
)

// NewPoller creates the live mailbox loop. deps must carry a mailbox and a ledger.
func NewPoller(deps *Dependencies) *dispatch.Poller {
	cfg := deps.Config
	return dispatch.NewPoller(
		deps.Mailbox,
		NewClassifier(deps, classification.PromptConversational, metrics.FlowMailbox),
		deps.Router,
		deps.Ledger,
		dispatch.RealClock(),
		dispatch.PollerConfig{
			Interval:    cfg.PollInterval(),
			MaxAttempts: cfg.PollMaxAttempts,
			From:        cfg.MailSender,
			WebFormURL:  cfg.WebFormURL,
			Metrics:     deps.Metrics,
		},
	)
}
