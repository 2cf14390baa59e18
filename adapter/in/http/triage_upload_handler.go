package http

import (
	"fmt"
	"regexp"
	"strings"

	"ticket_triage/core/port/in"
	"ticket_triage/core/service/report"
	"ticket_triage/pkg/apperr"
	"ticket_triage/pkg/logger"
	"ticket_triage/pkg/tabular"

	"github.com/gofiber/fiber/v2"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// UploadHandler accepts ticket files and runs them through the batch flow.
type UploadHandler struct {
	batch           in.BatchService
	recipientDomain string
	maxRows         int
	log             *logger.Logger
}

// NewUploadHandler creates an upload handler. recipientDomain restricts the
// report recipient to one mail domain; empty accepts any domain. maxRows
// caps the tickets per file; zero accepts any number.
func NewUploadHandler(batch in.BatchService, recipientDomain string, maxRows int) *UploadHandler {
	return &UploadHandler{
		batch:           batch,
		recipientDomain: strings.ToLower(strings.TrimSpace(recipientDomain)),
		maxRows:         maxRows,
		log:             logger.WithField("component", "upload"),
	}
}

// Register registers upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/tickets/upload", h.Upload)
}

// UploadResponse is the JSON body of a successful upload.
type UploadResponse struct {
	RunID     string         `json:"run_id"`
	Source    string         `json:"source"`
	Recipient string         `json:"recipient"`
	Delivered bool           `json:"delivered"`
	SendError string         `json:"send_error,omitempty"`
	Total     int            `json:"total"`
	Counts    map[string]int `json:"counts"`
	Rows      []report.Row   `json:"rows"`
}

// Upload handles POST /tickets/upload with multipart fields "email" and
// "file". With ?format=csv the report is returned as a download.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	recipient, err := h.validateRecipient(c.FormValue("email"))
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.MissingField("file")
	}
	if !tabular.Supported(fh.Filename) {
		return apperr.UnsupportedFormat(fh.Filename)
	}

	f, err := fh.Open()
	if err != nil {
		return apperr.InternalWithError(fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	records, err := tabular.ReadFile(fh.Filename, f)
	if err != nil {
		return apperr.InvalidInput("file", err.Error())
	}
	if len(records) == 0 {
		return apperr.InvalidInput("file", "no tickets found")
	}
	if h.maxRows > 0 && len(records) > h.maxRows {
		return apperr.InvalidInput("file", fmt.Sprintf("%d tickets exceed the limit of %d", len(records), h.maxRows))
	}

	h.log.Info("upload %s: %d tickets for %s", fh.Filename, len(records), recipient)

	result, err := h.batch.Process(c.UserContext(), &in.BatchRequest{
		Records:   records,
		Recipient: recipient,
		Source:    fh.Filename,
	})
	if err != nil {
		return apperr.InternalWithError(err)
	}

	if strings.EqualFold(c.Query("format"), "csv") {
		data, err := result.Report.RenderCSV()
		if err != nil {
			return apperr.InternalWithError(err)
		}
		c.Set(fiber.HeaderContentType, report.ContentTypeCSV)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, report.DownloadName))
		return c.Send(data)
	}

	counts := make(map[string]int)
	for category, n := range result.Report.CountByCategory() {
		counts[string(category)] = n
	}
	return c.JSON(NewSuccess(c, UploadResponse{
		RunID:     result.RunID,
		Source:    fh.Filename,
		Recipient: recipient,
		Delivered: result.Delivered,
		SendError: result.SendError,
		Total:     result.Report.Len(),
		Counts:    counts,
		Rows:      result.Report.Rows,
	}))
}

func (h *UploadHandler) validateRecipient(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", apperr.MissingField("email")
	}
	if !emailPattern.MatchString(email) {
		return "", apperr.InvalidInput("email", "not a valid email address")
	}
	if h.recipientDomain != "" {
		_, domain, _ := strings.Cut(email, "@")
		if strings.ToLower(domain) != h.recipientDomain {
			return "", apperr.InvalidInput("email", "address must be in the "+h.recipientDomain+" domain")
		}
	}
	return email, nil
}
