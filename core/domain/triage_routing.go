package domain

// RoutingDecision is the resolved destination for a classified ticket.
// It lives only for the current run.
type RoutingDecision struct {
	TicketID    string         `json:"ticket_id,omitempty"`
	Title       string         `json:"ticket_title,omitempty"`
	Category    TicketCategory `json:"category"`
	Destination string         `json:"destination"`
	Label       string         `json:"label"`
	Routable    bool           `json:"routable"`
}

// ForTicket returns a copy of d bound to the given ticket.
func (d RoutingDecision) ForTicket(t Ticket) RoutingDecision {
	d.TicketID = t.ID
	d.Title = t.Title
	return d
}
