// Package ticket builds domain tickets from mailbox messages and uploaded rows.
package ticket

import (
	"strconv"
	"strings"

	"ticket_triage/core/domain"
	"ticket_triage/core/port/out"
)

// Record keys read from uploaded rows. Lookups are case-sensitive.
const (
	KeyDescription      = "Description"
	KeyDescriptionLower = "description"
	KeyTitle            = "Ticket Title"
)

// FromMessage extracts a ticket from message metadata. The snippet stands in
// for the description; the payload MIME type decides whether it is classified.
func FromMessage(msg *out.MailMessage) domain.Ticket {
	if msg == nil {
		return domain.Ticket{}
	}
	return domain.Ticket{
		ID:          msg.ID,
		Description: strings.TrimSpace(msg.Snippet),
		Sender:      msg.From,
		Subject:     msg.Subject,
		Title:       msg.Subject,
		ContentKind: msg.MimeType,
	}
}

// FromRecord extracts a ticket from one uploaded row. index is zero-based.
// A row without a description yields a ticket with an empty Description.
func FromRecord(index int, record map[string]string) domain.Ticket {
	fields := make(map[string]string, len(record))
	for k, v := range record {
		fields[k] = v
	}

	description, ok := record[KeyDescription]
	if !ok {
		description = record[KeyDescriptionLower]
	}

	return domain.Ticket{
		ID:          "row-" + strconv.Itoa(index+1),
		Description: strings.TrimSpace(description),
		Title:       strings.TrimSpace(record[KeyTitle]),
		Fields:      fields,
	}
}

// FromRecords extracts tickets in input order.
func FromRecords(records []map[string]string) []domain.Ticket {
	tickets := make([]domain.Ticket, 0, len(records))
	for i, record := range records {
		tickets = append(tickets, FromRecord(i, record))
	}
	return tickets
}
