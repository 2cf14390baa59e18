package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ticket_triage/config"
	"ticket_triage/core/domain"
	"ticket_triage/core/port/in"
	"ticket_triage/internal/bootstrap"
	"ticket_triage/pkg/logger"
	"ticket_triage/pkg/tabular"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
	batchCmdName    = "batch"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "triage",
	Short:         "Helpdesk ticket triage assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional, for local development
		envErr := godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// batch may print the report on stdout
		logOut := os.Stdout
		if cmd.Name() == batchCmdName {
			logOut = os.Stderr
		}
		logger.Init(logger.Config{
			Level:   logger.ParseLevel(cfg.LogLevel),
			Output:  logOut,
			Console: cfg.IsDevelopment(),
			Service: "triage",
		})
		if envErr != nil {
			logger.Debug("No .env file found, using environment variables")
		}
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Answer unread mailbox tickets until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPoll(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ticket upload API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run the mailbox loop and the upload API together",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAll(cmd.Context())
	},
}

var (
	batchFile string
	batchTo   string
	batchOut  string
)

var batchCmd = &cobra.Command{
	Use:   batchCmdName,
	Short: "Classify a local ticket file (.csv, .xlsx, .txt)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context())
	},
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize mailbox access interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := bootstrap.NewSession(cfg)
		if err != nil {
			return err
		}
		return session.Authorize(cmd.Context(), os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")

	batchCmd.Flags().StringVar(&batchFile, "file", "", "ticket file to classify")
	batchCmd.Flags().StringVar(&batchTo, "to", "", "mail the report to this address")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "write the report CSV to this path instead of stdout")
	_ = batchCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(pollCmd, serveCmd, allCmd, batchCmd, authCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var authErr *domain.AuthenticationError
		if errors.As(err, &authErr) {
			logger.Error("Mailbox authentication failed, run `triage auth`: %v", err)
		} else {
			logger.Error("%v", err)
		}
		stop()
		os.Exit(1)
	}
}

func runPoll(ctx context.Context) error {
	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Needs{Mailbox: true, Ledger: true})
	if err != nil {
		return err
	}
	defer cleanup()

	return bootstrap.NewPoller(deps).Run(ctx)
}

func runServe(ctx context.Context) error {
	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Needs{Mailbox: true, MailboxOptional: true})
	if err != nil {
		return err
	}
	defer cleanup()

	return serveAPI(ctx, bootstrap.NewAPI(deps))
}

func runAll(ctx context.Context) error {
	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Needs{Mailbox: true, Ledger: true})
	if err != nil {
		return err
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bootstrap.NewPoller(deps).Run(gctx)
	})
	g.Go(func() error {
		return serveAPI(gctx, bootstrap.NewAPI(deps))
	})
	return g.Wait()
}

// serveAPI listens until ctx is done, then shuts the server down.
func serveAPI(ctx context.Context, app *fiber.App) error {
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("Starting API server on %s", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("Error shutting down: %v", err)
		return err
	}
	logger.Info("API server shut down gracefully")
	return nil
}

func runBatch(ctx context.Context) error {
	f, err := os.Open(batchFile)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := tabular.ReadFile(batchFile, f)
	if err != nil {
		return fmt.Errorf("read %s: %w", batchFile, err)
	}

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Needs{Mailbox: batchTo != ""})
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := bootstrap.NewBatch(deps).Process(ctx, &in.BatchRequest{
		Records:   records,
		Recipient: batchTo,
		Source:    filepath.Base(batchFile),
	})
	if err != nil {
		return err
	}

	data, err := result.Report.RenderCSV()
	if err != nil {
		return err
	}
	if batchOut != "" {
		if err := os.WriteFile(batchOut, data, 0o644); err != nil {
			return err
		}
		logger.Info("Report written to %s", batchOut)
	} else {
		if _, err := os.Stdout.Write(data); err != nil {
			return err
		}
	}

	if batchTo != "" && !result.Delivered {
		return fmt.Errorf("report not mailed to %s: %s", batchTo, result.SendError)
	}
	return nil
}
