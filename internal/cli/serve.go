package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ferre795/chatrelay/internal/config"
	"github.com/ferre795/chatrelay/internal/logger"
	"github.com/ferre795/chatrelay/internal/metrics"
	"github.com/ferre795/chatrelay/internal/server"
	"github.com/ferre795/chatrelay/pkg/provider"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Long: `Run the relay server. It owns the provider API key, streams model
replies to clients over SSE, and keeps the per-session conversation
context replayed to the provider on every turn.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Pick up provider keys from a local .env when present
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	p, err := provider.New(provider.Config{
		Provider: cfg.Provider.Name,
		APIKey:   cfg.Provider.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	srv, err := server.NewServer(server.Options{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		RateLimitPerMinute: cfg.Server.RateLimit,
		SessionTTL:         time.Duration(cfg.Server.SessionTTLMinutes) * time.Minute,
		Model:              cfg.Provider.Model,
		MaxTokens:          cfg.Provider.MaxTokens,
	}, p, metrics.NewMetrics(), log.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Stop on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		if err := srv.Stop(); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	return srv.Start()
}
