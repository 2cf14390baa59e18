package bootstrap

import (
	"context"
	"fmt"

	"ticket_triage/adapter/out/llm"
	"ticket_triage/adapter/out/persistence"
	"ticket_triage/adapter/out/provider"
	"ticket_triage/config"
	"ticket_triage/core/port/out"
	"ticket_triage/core/service/classification"
	"ticket_triage/infra/database"
	"ticket_triage/pkg/logger"
	"ticket_triage/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Needs selects the optional parts NewDependencies builds.
type Needs struct {
	Mailbox         bool // Gmail session and client
	MailboxOptional bool // continue without a mailbox when it cannot be opened
	Ledger          bool // processed-message ledger
}

type Dependencies struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.TriageMetrics
	Redis    *redis.Client // nil without REDIS_URL

	Generator out.TextGenerator
	Router    *classification.Router
	Ledger    out.ProcessedLedger
	Mailbox   out.Mailbox // nil when not requested or not authorized
}

// NewDependencies builds what a command needs. The returned cleanup releases
// every opened connection.
func NewDependencies(ctx context.Context, cfg *config.Config, needs Needs) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	deps.Registry = prometheus.NewRegistry()
	deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Metrics = metrics.NewTriageMetrics(deps.Registry)

	if err := cfg.ValidateLLM(); err != nil {
		return nil, nil, fmt.Errorf("llm config: %w", err)
	}
	gen, err := NewGenerator(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	deps.Generator = gen
	deps.Router = NewRouter(cfg)

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		deps.Redis = rdb
		cleanups = append(cleanups, func() { rdb.Close() })
		logger.Info("Redis connected")
	}

	if needs.Ledger {
		if deps.Redis != nil {
			deps.Ledger = persistence.NewRedisLedger(deps.Redis, cfg.LedgerKeyPrefix, cfg.LedgerTTL())
		} else {
			logger.Warn("REDIS_URL not set, processed messages are remembered in memory only")
			deps.Ledger = persistence.NewMemoryLedger(cfg.LedgerTTL())
		}
	}

	if needs.Mailbox {
		mailbox, err := NewMailbox(ctx, cfg)
		switch {
		case err == nil:
			deps.Mailbox = mailbox
		case needs.MailboxOptional:
			logger.WithError(err).Warn("mailbox unavailable, reports will not be mailed")
		default:
			cleanup()
			return nil, nil, err
		}
	}

	return deps, cleanup, nil
}

// NewGenerator creates the text generator of the configured provider.
func NewGenerator(ctx context.Context, cfg *config.Config) (out.TextGenerator, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return llm.NewGeminiGenerator(ctx, llm.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
	case config.ProviderOpenAI:
		return llm.NewOpenAIGenerator(llm.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// NewRouter creates the router from the configured team addresses.
func NewRouter(cfg *config.Config) *classification.Router {
	return classification.NewRouter(classification.RoutingTable{
		Infra:            cfg.InfraEmail,
		ApplicationTeam:  cfg.AppTeamEmail,
		AccessManagement: cfg.AccessMgmtEmail,
	})
}

// NewClassifier creates a classifier for one flow.
func NewClassifier(deps *Dependencies, style classification.PromptStyle, flow string) *classification.Classifier {
	return classification.NewClassifier(deps.Generator, classification.ClassifierConfig{
		Style:   style,
		Timeout: deps.Config.LLMTimeout(),
		Flow:    flow,
		Metrics: deps.Metrics,
	})
}

// NewSession creates the mailbox session with the configured token store.
func NewSession(cfg *config.Config) (*provider.MailboxSession, error) {
	if err := cfg.ValidateMailbox(); err != nil {
		return nil, fmt.Errorf("mailbox config: %w", err)
	}
	oauthCfg, err := provider.OAuthConfig(provider.SessionConfig{
		CredentialsFile: cfg.GoogleCredentialsFile,
		ClientID:        cfg.GoogleClientID,
		ClientSecret:    cfg.GoogleClientSecret,
		RedirectURL:     cfg.GoogleRedirectURL,
	})
	if err != nil {
		return nil, err
	}

	var store provider.TokenStore
	switch cfg.TokenStore {
	case config.TokenStoreKeyring:
		store = provider.NewKeyringTokenStore("")
	default:
		store = provider.NewFileTokenStore(cfg.TokenFile)
	}
	logger.Debug("mailbox token store: %s", store.Description())
	return provider.NewMailboxSession(oauthCfg, store), nil
}

// NewMailbox creates an authorized Gmail client.
func NewMailbox(ctx context.Context, cfg *config.Config) (*provider.GmailMailbox, error) {
	session, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	ts, err := session.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return provider.NewGmailMailbox(ctx, ts, provider.GmailConfig{From: cfg.MailSender})
}
