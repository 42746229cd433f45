package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/relay"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the generative-language relay",
	Long: `Run the HTTP relay that fronts the generative-language API.

The relay holds the provider credential so the bridge and the extension
never see it. It exits immediately if the configured provider's API key
is missing.`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := buildProvider(ctx, cfg.Relay)
	if err != nil {
		return err
	}

	srv := relay.NewServer(relay.Config{
		Listen:    cfg.Relay.Listen,
		MaxTokens: cfg.Relay.MaxTokens,
	}, provider)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}
	log.Printf("pagelens relay listening on %s (provider: %s, model: %s)",
		srv.Addr(), provider.Name(), cfg.Relay.Model)

	<-ctx.Done()
	log.Printf("shutting down relay")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "relay shutdown: %v\n", err)
	}
	return nil
}

func buildProvider(ctx context.Context, rc *config.RelayConfig) (relay.Provider, error) {
	switch rc.Provider {
	case "gemini":
		return relay.NewGeminiProvider(ctx, config.GeminiAPIKey(), rc.Model)
	case "anthropic":
		return relay.NewAnthropicProvider(config.AnthropicAPIKey(), rc.Model)
	default:
		return nil, fmt.Errorf("unknown provider %q (want gemini or anthropic)", rc.Provider)
	}
}
