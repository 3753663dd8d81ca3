// Package server provides the public entry point for initializing the
// Majordomo orchestrator.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/majordomo-ai/majordomo/internal/api"
	"github.com/majordomo-ai/majordomo/internal/config"
	"github.com/majordomo-ai/majordomo/internal/executor"
	"github.com/majordomo-ai/majordomo/internal/handlers"
	"github.com/majordomo-ai/majordomo/internal/registry"
	"github.com/majordomo-ai/majordomo/internal/router"
	"github.com/majordomo-ai/majordomo/internal/session"
	"github.com/majordomo-ai/majordomo/internal/telemetry"
	"github.com/majordomo-ai/majordomo/internal/tools"
)

// Server holds the initialized orchestrator.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Engine drives conversational turns; exposed for embedding and the
	// one-shot CLI mode.
	Engine *executor.Engine

	// Sessions is the conversation state store.
	Sessions session.Store

	// Config is the loaded configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush
	// telemetry and close stores.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the orchestrator with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	telemetryShutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	// Session store: in-memory by default, Redis when configured.
	var sessions session.Store
	var redisStore *session.RedisStore
	if cfg.Session.RedisURL != "" {
		redisStore, err = session.NewRedisStore(cfg.Session.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis session store: %w", err)
		}
		if err := redisStore.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		sessions = redisStore
		log.Info().Msg("✅ Redis session store initialized")
	} else {
		sessions = session.NewMemoryStore()
		log.Info().Msg("✅ In-memory session store initialized")
	}

	journal, err := tools.OpenJournal(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal store: %w", err)
	}

	reg := registry.New()
	registerCapabilities(reg, cfg, journal)
	log.Info().
		Strs("handlers", reg.HandlerOrder()).
		Strs("tools", reg.ToolNames()).
		Msg("✅ Capability registry initialized")

	engine := executor.New(reg, sessions, router.New(cfg.Routing), cfg.Executor)
	log.Info().Msg("✅ Orchestration engine initialized")

	a := api.NewAPI(engine, sessions)

	shutdown := func(ctx context.Context) error {
		if err := journal.Close(); err != nil {
			log.Warn().Err(err).Msg("journal close failed")
		}
		if redisStore != nil {
			if err := redisStore.Close(); err != nil {
				log.Warn().Err(err).Msg("redis close failed")
			}
		}
		return telemetryShutdown(ctx)
	}

	return &Server{
		Handler:      api.NewRouter(cfg, a),
		Engine:       engine,
		Sessions:     sessions,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// registerCapabilities wires the stock tool and handler set. Registration
// order doubles as the fallback routing priority.
func registerCapabilities(reg *registry.Registry, cfg *config.Config, journal *tools.Journal) {
	calendar := tools.NewCalendar()
	home := tools.NewHome()

	reg.RegisterTool(tools.NewWikiSearch(cfg.Tools.WikiEndpoint))
	reg.RegisterTool(tools.NewWebSearch(cfg.Tools.SearchEndpoint, cfg.Tools.SearchAPIKey, ""))
	reg.RegisterTool(tools.NewCalendarCreate(calendar))
	reg.RegisterTool(tools.NewCalendarList(calendar))
	reg.RegisterTool(tools.NewJournalSave(journal))
	reg.RegisterTool(tools.NewJournalSearch(journal))
	reg.RegisterTool(tools.NewJournalRecent(journal))
	reg.RegisterTool(tools.NewHomeGetState(home))
	reg.RegisterTool(tools.NewHomeSetState(home))
	reg.RegisterTool(tools.NewHumanApprove())

	reg.RegisterHandler(handlers.NewScribe())
	reg.RegisterHandler(handlers.NewSentinel())
	reg.RegisterHandler(handlers.NewOracle())
	reg.RegisterHandler(handlers.NewMajordomo())
	reg.RegisterHandler(handlers.NewSafety())
}
