package domain

import "strings"

// ContentKindAlternative marks a message whose body is multipart/alternative,
// the only structure the mailbox flow classifies.
const ContentKindAlternative = "multipart/alternative"

// Ticket is a single support request extracted from a message or an uploaded row.
// Tickets are values: extraction always builds a new one.
type Ticket struct {
	ID          string
	Description string
	Sender      string
	Subject     string
	Title       string
	ContentKind string
	Fields      map[string]string
}

// HasDescription reports whether the ticket carries classifiable text.
func (t Ticket) HasDescription() bool {
	return strings.TrimSpace(t.Description) != ""
}

// IsClassifiableMessage reports whether a mailbox ticket has a body structure
// the live flow sends to the classifier.
func (t Ticket) IsClassifiableMessage() bool {
	return strings.EqualFold(t.ContentKind, ContentKindAlternative)
}

// ReplySubject returns the subject line for a reply to this ticket.
func (t Ticket) ReplySubject() string {
	return "RE: " + t.Subject
}

// Field returns a copy-safe lookup into the raw fields.
func (t Ticket) Field(key string) (string, bool) {
	v, ok := t.Fields[key]
	return v, ok
}
