package bootstrap

import (
	"context"
	"strings"
	"time"

	"ticket_triage/adapter/in/http"
	"ticket_triage/core/service/classification"
	"ticket_triage/core/service/dispatch"
	"ticket_triage/infra/middleware"
	"ticket_triage/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// NewBatch creates the batch service. Reports are mailed when deps has a mailbox.
func NewBatch(deps *Dependencies) *dispatch.Batch {
	return dispatch.NewBatch(
		deps.Mailbox,
		NewClassifier(deps, classification.PromptFormal, metrics.FlowBatch),
		deps.Router,
		dispatch.BatchConfig{
			From:         deps.Config.MailSender,
			UnknownEmail: deps.Config.UnknownEmail,
			Metrics:      deps.Metrics,
		},
	)
}

// NewAPI creates the upload API.
func NewAPI(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json for request and response bodies
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:    cfg.UploadMaxMB * 1024 * 1024,
		ReadTimeout:  time.Minute,
		WriteTimeout: cfg.UploadWriteTimeout(), // a batch classifies every row before responding

		ServerHeader:       "",
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		// "*" cannot be combined with credentials
		allowOrigins = "*"
		allowCredentials = false
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,Content-Disposition",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	checks := map[string]http.HealthChecker{}
	if deps.Redis != nil {
		rdb := deps.Redis
		checks["redis"] = http.HealthCheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	http.NewHealthHandler(checks).Register(app)
	http.RegisterMetrics(app, deps.Registry)

	api := app.Group("/api/v1",
		middleware.NoCache(),
		limiter.New(limiter.Config{
			Max:        cfg.UploadRatePerMin,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.ErrTooManyRequests
			},
		}),
		middleware.UploadAuth(cfg.UploadJWTSecret),
	)
	http.NewUploadHandler(NewBatch(deps), cfg.RecipientDomain, cfg.UploadMaxRows).Register(api)

	return app
}
