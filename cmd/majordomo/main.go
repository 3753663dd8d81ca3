// Majordomo — a conversational home assistant orchestrator.
//
// This is the main entry point. It provides:
//   - Intent Router (handler selection per turn)
//   - Orchestration Engine (handler/tool execution graph)
//   - Capability Registry (handlers + tools)
//   - Session Store (in-memory, or Redis when configured)
//   - Chat HTTP API
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/majordomo-ai/majordomo/internal/compose"
	"github.com/majordomo-ai/majordomo/pkg/server"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	root := &cobra.Command{
		Use:          "majordomo",
		Short:        "Conversational home assistant orchestrator",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), chatCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().Msg("🎩 Majordomo starting...")

			ctx := cmd.Context()
			srv, err := server.New(ctx)
			if err != nil {
				return fmt.Errorf("initialize server: %w", err)
			}
			defer srv.ShutdownFunc(ctx)

			if port > 0 {
				srv.Port = port
			}

			httpServer := &http.Server{
				Addr:         fmt.Sprintf(":%d", srv.Port),
				Handler:      srv.Handler,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			// Graceful shutdown
			go func() {
				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
				<-sigChan

				log.Info().Msg("🛑 Shutting down gracefully...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			log.Info().
				Int("port", srv.Port).
				Msg("🎩 Majordomo is at your service")

			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides MAJORDOMO_PORT)")
	return cmd
}

// chatCmd runs a single turn without the HTTP surface, for local poking.
func chatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run one conversational turn and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srv, err := server.New(ctx)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			defer srv.ShutdownFunc(ctx)

			turn, _, err := srv.Engine.RunTurn(ctx, sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			reply, trace := compose.Compose(turn)
			fmt.Println(reply)
			for _, entry := range trace {
				fmt.Printf("  [%s] %s %s\n", entry.Status, entry.Tool, entry.Summary)
			}
			fmt.Printf("session: %s turn: %d\n", turn.SessionID, turn.Index)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	return cmd
}
