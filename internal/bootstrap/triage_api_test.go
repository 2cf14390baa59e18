package bootstrap

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"ticket_triage/adapter/out/llm"
	"ticket_triage/config"
	"ticket_triage/core/domain"
	"ticket_triage/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{ reply string }

func (s stubGenerator) Complete(context.Context, string) (string, error) { return s.reply, nil }

func testDeps(cfg *config.Config) *Dependencies {
	reg := prometheus.NewRegistry()
	return &Dependencies{
		Config:    cfg,
		Registry:  reg,
		Metrics:   metrics.NewTriageMetrics(reg),
		Generator: stubGenerator{reply: "This is an Infra issue."},
		Router:    NewRouter(cfg),
	}
}

func uploadCSV(t *testing.T, app *fiber.App, token string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("email", "ops@gmail.com"))
	part, err := w.CreateFormFile("file", "tickets.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Ticket Title,Description\nServer Downtime,Several servers are unreachable\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAPIUploadWithoutMailbox(t *testing.T) {
	app := NewAPI(testDeps(config.Defaults()))

	resp := uploadCSV(t, app, "")
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	var body struct {
		Data struct {
			Delivered bool   `json:"delivered"`
			SendError string `json:"send_error"`
			Rows      []struct {
				Title          string `json:"ticket_title"`
				AssignedTo     string `json:"assigned_to"`
				RecipientEmail string `json:"recipient_email"`
			} `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Data.Delivered)
	assert.Equal(t, "mailbox not configured", body.Data.SendError)
	require.Len(t, body.Data.Rows, 1)
	assert.Equal(t, "Server Downtime", body.Data.Rows[0].Title)
	assert.Equal(t, "infra@example.com", body.Data.Rows[0].RecipientEmail)

	metricsResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	data, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `triage_batches_total{delivered="false"} 1`)
}

func TestAPIUploadRequiresTokenWhenSecretSet(t *testing.T) {
	cfg := config.Defaults()
	cfg.UploadJWTSecret = "s3cret"
	app := NewAPI(testDeps(cfg))

	resp := uploadCSV(t, app, "")
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAPIHealth(t *testing.T) {
	app := NewAPI(testDeps(config.Defaults()))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	cfg := config.Defaults()
	cfg.OpenAIAPIKey = "sk-test"
	gen, err := NewGenerator(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAIGenerator{}, gen)

	cfg.LLMProvider = config.ProviderGemini
	cfg.GeminiAPIKey = "gm-test"
	gen, err = NewGenerator(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &llm.GeminiGenerator{}, gen)

	cfg.LLMProvider = "claude"
	_, err = NewGenerator(ctx, cfg)
	assert.Error(t, err)
}

func TestNewRouterUsesConfiguredAddresses(t *testing.T) {
	cfg := config.Defaults()
	cfg.InfraEmail = "ops@corp.example"

	decision := NewRouter(cfg).Route(domain.CategoryInfra)
	assert.Equal(t, "ops@corp.example", decision.Destination)
	assert.True(t, decision.Routable)
}
