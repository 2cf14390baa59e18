package classification

import (
	"context"
	"errors"
	"strings"
	"time"

	"ticket_triage/core/domain"
	"ticket_triage/core/port/out"
	"ticket_triage/pkg/logger"
	"ticket_triage/pkg/metrics"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 60 * time.Second

// ClassifierConfig configures a Classifier.
type ClassifierConfig struct {
	Style   PromptStyle
	Timeout time.Duration
	Flow    string // metrics label, see metrics.FlowMailbox / metrics.FlowBatch
	Metrics *metrics.TriageMetrics
}

// Classifier asks a text generator which team a ticket belongs to.
type Classifier struct {
	gen     out.TextGenerator
	style   PromptStyle
	timeout time.Duration
	flow    string
	metrics *metrics.TriageMetrics
	log     *logger.Logger
}

// NewClassifier creates a classifier around gen.
func NewClassifier(gen out.TextGenerator, cfg ClassifierConfig) *Classifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	flow := cfg.Flow
	if flow == "" {
		flow = metrics.FlowBatch
	}
	return &Classifier{
		gen:     gen,
		style:   cfg.Style,
		timeout: timeout,
		flow:    flow,
		metrics: cfg.Metrics,
		log:     logger.WithField("component", "classifier").WithField("flow", flow),
	}
}

// Classify makes one model call for description and normalizes the answer.
// A blank description is CategoryUnknown without a model call. Any failure
// returns CategoryUnknown together with a *domain.ClassificationError.
func (c *Classifier) Classify(ctx context.Context, description string) (domain.TicketCategory, error) {
	if strings.TrimSpace(description) == "" {
		c.log.Debug("blank description, skipping model call")
		return domain.CategoryUnknown, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.gen.Complete(callCtx, BuildPrompt(c.style, description))
	elapsed := time.Since(start)

	if err == nil && strings.TrimSpace(raw) == "" {
		err = domain.ErrEmptyResponse
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			c.log.Warn("model call exceeded %s", c.timeout)
		}
		c.metrics.ObserveClassification(c.flow, string(domain.CategoryUnknown), elapsed, true)
		return domain.CategoryUnknown, &domain.ClassificationError{Raw: raw, Err: err}
	}

	category := Normalize(raw)
	c.metrics.ObserveClassification(c.flow, string(category), elapsed, false)
	c.log.WithDuration(elapsed).Debug("classified as %s", category)
	return category, nil
}
