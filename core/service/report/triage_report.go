// Package report collects routing decisions for a batch and renders them.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"ticket_triage/core/domain"
)

// DefaultUnknownEmail is the recipient shown for tickets no team owns.
const DefaultUnknownEmail = "unknown@example.com"

// UntitledTicket is the title shown for rows without a "Ticket Title".
const UntitledTicket = "Unknown"

// File names and mail content for a delivered report.
const (
	AttachmentName = "report.csv"
	DownloadName   = "ticket_assignments.csv"
	MailSubject    = "Tickets CSV Report"
	MailBody       = "Dear User,\nPlease find the CSV report attached."
	ContentTypeCSV = "text/csv"
)

// Columns is the CSV header, in order.
var Columns = []string{"Ticket Title", "Assigned To", "Recipient Email"}

// Row is one line of the report.
type Row struct {
	TicketID       string                `json:"ticket_id"`
	Title          string                `json:"ticket_title"`
	AssignedTo     string                `json:"assigned_to"`
	RecipientEmail string                `json:"recipient_email"`
	Category       domain.TicketCategory `json:"category"`
	Routable       bool                  `json:"routable"`
}

// Report is the ordered outcome of one batch run.
type Report struct {
	RunID        string    `json:"run_id"`
	Source       string    `json:"source,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
	Rows         []Row     `json:"rows"`
	unknownEmail string
}

// New creates an empty report. An empty unknownEmail uses DefaultUnknownEmail.
func New(runID, source, unknownEmail string, capacity int) *Report {
	if unknownEmail == "" {
		unknownEmail = DefaultUnknownEmail
	}
	return &Report{
		RunID:        runID,
		Source:       source,
		GeneratedAt:  time.Now().UTC(),
		Rows:         make([]Row, 0, capacity),
		unknownEmail: unknownEmail,
	}
}

// Add appends a decision. Unroutable decisions carry the unknown placeholder.
func (r *Report) Add(d domain.RoutingDecision) {
	title := d.Title
	if title == "" {
		title = UntitledTicket
	}
	recipient := d.Destination
	if !d.Routable {
		recipient = r.unknownEmail
	}
	r.Rows = append(r.Rows, Row{
		TicketID:       d.TicketID,
		Title:          title,
		AssignedTo:     d.Label,
		RecipientEmail: recipient,
		Category:       d.Category,
		Routable:       d.Routable,
	})
}

// Len returns the number of rows.
func (r *Report) Len() int {
	return len(r.Rows)
}

// CountByCategory tallies rows per category.
func (r *Report) CountByCategory() map[domain.TicketCategory]int {
	counts := make(map[domain.TicketCategory]int)
	for _, row := range r.Rows {
		counts[row.Category]++
	}
	return counts
}

// RenderCSV renders the report with a header row, rows in insertion order.
func (r *Report) RenderCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, row := range r.Rows {
		if err := w.Write([]string{row.Title, row.AssignedTo, row.RecipientEmail}); err != nil {
			return nil, fmt.Errorf("write row %s: %w", row.TicketID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
