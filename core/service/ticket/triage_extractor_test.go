package ticket

import (
	"testing"

	"ticket_triage/core/domain"
	"ticket_triage/core/port/out"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestFromMessage(t *testing.T) {
	msg := &out.MailMessage{
		ID:       "18c1f",
		Subject:  "VPN broken",
		From:     "Jane <jane@example.com>",
		Snippet:  "  VPN drops every 5 minutes  ",
		MimeType: "multipart/alternative",
	}

	got := FromMessage(msg)

	want := domain.Ticket{
		ID:          "18c1f",
		Description: "VPN drops every 5 minutes",
		Sender:      "Jane <jane@example.com>",
		Subject:     "VPN broken",
		Title:       "VPN broken",
		ContentKind: "multipart/alternative",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromMessage() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got.IsClassifiableMessage())
	assert.Equal(t, "RE: VPN broken", got.ReplySubject())
}

func TestFromMessageNil(t *testing.T) {
	assert.Equal(t, domain.Ticket{}, FromMessage(nil))
}

func TestFromRecord(t *testing.T) {
	tests := []struct {
		name            string
		record          map[string]string
		wantDescription string
		wantTitle       string
	}{
		{
			name:            "capitalized description",
			record:          map[string]string{"Ticket Title": "Outage", "Description": "Server down"},
			wantDescription: "Server down",
			wantTitle:       "Outage",
		},
		{
			name:            "lowercase description fallback",
			record:          map[string]string{"description": "Reset my password"},
			wantDescription: "Reset my password",
		},
		{
			name:            "capitalized wins over lowercase",
			record:          map[string]string{"Description": "A", "description": "B"},
			wantDescription: "A",
		},
		{
			name:      "no description",
			record:    map[string]string{"Ticket Title": "Empty"},
			wantTitle: "Empty",
		},
		{
			name:   "keys are case-sensitive",
			record: map[string]string{"DESCRIPTION": "ignored"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromRecord(0, tt.record)
			assert.Equal(t, "row-1", got.ID)
			assert.Equal(t, tt.wantDescription, got.Description)
			assert.Equal(t, tt.wantTitle, got.Title)
			if diff := cmp.Diff(tt.record, got.Fields); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromRecordCopiesFields(t *testing.T) {
	record := map[string]string{"Description": "x"}
	got := FromRecord(0, record)
	record["Description"] = "changed"

	v, ok := got.Field("Description")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestFromRecordsKeepsOrder(t *testing.T) {
	records := []map[string]string{
		{"Description": "first"},
		{},
		{"description": "third"},
	}

	got := FromRecords(records)

	assert.Len(t, got, 3)
	assert.Equal(t, []string{"row-1", "row-2", "row-3"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "first", got[0].Description)
	assert.False(t, got[1].HasDescription())
	assert.Equal(t, "third", got[2].Description)
}
