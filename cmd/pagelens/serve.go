package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/bridge"
	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/coordinator"
	"github.com/pagelens/pagelens/internal/lifecycle"
	"github.com/pagelens/pagelens/internal/registry"
	"github.com/pagelens/pagelens/internal/tools"
)

var serveMCP bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extension-facing bridge daemon",
	Long: `Run the websocket bridge the browser extension connects to.

The bridge accepts action frames from extension surfaces, forwards
generation work to the relay, and pushes lifecycle events back to the
surface that asked. With --mcp the same generation tools are also
exposed over MCP stdio for agent clients.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false,
		"Also expose generation tools over MCP stdio")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	reg := registry.New()
	hub := lifecycle.NewSurfaceHub()
	coord := coordinator.New(reg, hub, coordinator.NewRelayClient(cfg.Bridge.RelayURL))
	watcher := bridge.NewWatcher(reg)

	srv := bridge.NewServer(bridge.Config{Listen: cfg.Bridge.Listen}, coord, hub, watcher)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}
	log.Printf("pagelens bridge listening on %s (relay: %s)", srv.Addr(), cfg.Bridge.RelayURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveMCP {
		server := mcp.NewServer(&mcp.Implementation{
			Name:    "pagelens",
			Version: Version,
		}, &mcp.ServerOptions{
			Instructions: "Generation tools backed by the pagelens relay. Use generate for prompts over page content, summarize for whole-page summaries, and abort to cancel in-flight work.",
		})
		tools.Register(server, tools.NewGenerationTools(coord, reg))

		go func() {
			if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				log.Printf("[ERROR] MCP server exited: %v", err)
				stop()
			}
		}()
		log.Printf("MCP stdio transport attached")
	}

	<-ctx.Done()
	log.Printf("shutting down bridge")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "bridge shutdown: %v\n", err)
	}
	return nil
}
