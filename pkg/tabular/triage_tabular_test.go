package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffTicket Title,Description\n" +
		"Outage,Server Downtime in Data Center 1\n" +
		"\n" +
		"Login,\"Cannot log in, app crashes\"\n" +
		"Short\n"

	got, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	want := []Record{
		{"Ticket Title": "Outage", "Description": "Server Downtime in Data Center 1"},
		{"Ticket Title": "Login", "Description": "Cannot log in, app crashes"},
		{"Ticket Title": "Short", "Description": ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	got, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Ticket Title", "Description"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Access", "Need access to the HR portal"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Crash", "App crashes on save"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	want := []Record{
		{"Ticket Title": "Access", "Description": "Need access to the HR portal"},
		{"Ticket Title": "Crash", "Description": "App crashes on save"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadXLSX() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadXLSXInvalid(t *testing.T) {
	_, err := ReadXLSX(strings.NewReader("not a workbook"))
	assert.Error(t, err)
}

func TestReadFlatText(t *testing.T) {
	input := strings.Join([]string{
		"Ticket Title: Outage",
		"Description: Server Downtime",
		"in Data Center 1",
		"--------------------",
		"Ticket Title: Password",
		"Description: Reset: urgent",
		"---",
	}, "\n")

	got, err := ReadFlatText(strings.NewReader(input))
	require.NoError(t, err)

	want := []Record{
		{"Ticket Title": "Outage", "Description": "Server Downtime in Data Center 1"},
		{"Ticket Title": "Password", "Description": "Reset: urgent"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadFlatText() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFlatTextEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Record
	}{
		{
			name:  "trailing record without separator",
			input: "Description: one\n----------\nDescription: two",
			want:  []Record{{"Description": "one"}, {"Description": "two"}},
		},
		{
			name:  "consecutive separators skip empty records",
			input: "-----\n-----\nDescription: only\n-----\n-----",
			want:  []Record{{"Description": "only"}},
		},
		{
			name:  "continuation before description is dropped",
			input: "Ticket Title: T\nstray words\nDescription: d",
			want:  []Record{{"Ticket Title": "T", "Description": "d"}},
		},
		{
			name:  "three dashes inside a description end the record",
			input: "Ticket Title: T\nDescription: first part\n---\nsecond part\nDescription: next",
			want:  []Record{{"Ticket Title": "T", "Description": "first part"}, {"Description": "next"}},
		},
		{
			name:  "indented dash line is a separator",
			input: "Description: a\n   ------   \nDescription: b",
			want:  []Record{{"Description": "a"}, {"Description": "b"}},
		},
		{
			name:  "dashes mixed with text are content",
			input: "Description: a\n--- see below ---\n",
			want:  []Record{{"Description": "a --- see below ---"}},
		},
		{
			name:  "two dashes are content, not a separator",
			input: "Description: a\n--\n",
			want:  []Record{{"Description": "a --"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFlatText(strings.NewReader(tt.input))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	got, err := ReadFile("Tickets.CSV", strings.NewReader("Description\nhello\n"))
	require.NoError(t, err)
	assert.Equal(t, []Record{{"Description": "hello"}}, got)

	got, err = ReadFile("tickets.txt", strings.NewReader("Description: hi\n"))
	require.NoError(t, err)
	assert.Equal(t, []Record{{"Description": "hi"}}, got)

	_, err = ReadFile("tickets.pdf", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.csv"))
	assert.True(t, Supported("b.XLSX"))
	assert.True(t, Supported("c.txt"))
	assert.False(t, Supported("d.xls"))
	assert.False(t, Supported("noext"))
}
