package report

import (
	"testing"

	"ticket_triage/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportAdd(t *testing.T) {
	r := New("run-1", "tickets.csv", "", 2)

	r.Add(domain.RoutingDecision{
		TicketID:    "row-1",
		Title:       "Outage",
		Category:    domain.CategoryInfra,
		Destination: "infra@corp.example",
		Label:       "Infra",
		Routable:    true,
	})
	r.Add(domain.RoutingDecision{
		TicketID:    "row-2",
		Category:    domain.CategoryUnknown,
		Destination: "cannot route automatically",
		Label:       "Unknown",
	})

	require.Equal(t, 2, r.Len())
	assert.Equal(t, "infra@corp.example", r.Rows[0].RecipientEmail)
	assert.Equal(t, UntitledTicket, r.Rows[1].Title)
	assert.Equal(t, DefaultUnknownEmail, r.Rows[1].RecipientEmail)
	assert.Equal(t, map[domain.TicketCategory]int{
		domain.CategoryInfra:   1,
		domain.CategoryUnknown: 1,
	}, r.CountByCategory())
}

func TestReportCustomUnknownEmail(t *testing.T) {
	r := New("run-2", "", "triage@corp.example", 0)
	r.Add(domain.RoutingDecision{Category: domain.CategoryUnknown, Label: "Unknown"})
	assert.Equal(t, "triage@corp.example", r.Rows[0].RecipientEmail)
}

func TestRenderCSV(t *testing.T) {
	r := New("run-3", "", "", 0)
	r.Add(domain.RoutingDecision{Title: "Login, again", Label: "Application Team", Destination: "app@corp.example", Routable: true})
	r.Add(domain.RoutingDecision{Title: "Badge", Label: "Access Management", Destination: "access@corp.example", Routable: true})

	out, err := r.RenderCSV()
	require.NoError(t, err)

	want := "Ticket Title,Assigned To,Recipient Email\n" +
		"\"Login, again\",Application Team,app@corp.example\n" +
		"Badge,Access Management,access@corp.example\n"
	assert.Equal(t, want, string(out))
}

func TestRenderCSVEmpty(t *testing.T) {
	out, err := New("run-4", "", "", 0).RenderCSV()
	require.NoError(t, err)
	assert.Equal(t, "Ticket Title,Assigned To,Recipient Email\n", string(out))
}
