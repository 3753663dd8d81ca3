package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Majordomo orchestrator.
type Config struct {
	Port      int
	Version   string
	Telemetry TelemetryConfig
	Session   SessionConfig
	Executor  ExecutorConfig
	Routing   RoutingConfig
	Journal   JournalConfig
	Tools     ToolsConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type SessionConfig struct {
	// RedisURL, when set, switches the session store from in-memory to
	// the Redis-backed persistence hook.
	RedisURL string
}

type ExecutorConfig struct {
	// MaxCycles bounds EXECUTING ↔ AWAITING_TOOLS round trips per turn.
	MaxCycles int
	// MaxToolConcurrency bounds concurrent tool calls within one batch.
	MaxToolConcurrency int
	// ToolTimeout applies per tool invocation.
	ToolTimeout time.Duration
	// SafetyHandler produces the reply for FAILED turns.
	SafetyHandler string
}

type JournalConfig struct {
	// Path of the SQLite journal database. ":memory:" for ephemeral.
	Path string
}

type ToolsConfig struct {
	WikiEndpoint   string
	SearchEndpoint string
	SearchAPIKey   string
}

// RoutingConfig drives the intent router. Handler entries carry the
// keyword/phrase signals, the continuity slots, and the fixed priority
// used for deterministic tie-breaking.
type RoutingConfig struct {
	// Floor is the minimum confidence to act on a routed handler.
	Floor float64 `yaml:"floor"`
	// Epsilon is subtracted from the floor when falling back to the
	// default handler, so downstream logic can detect ambiguous routes.
	Epsilon float64 `yaml:"epsilon"`
	// DefaultHandler receives turns no candidate clears the floor for.
	DefaultHandler string `yaml:"default_handler"`
	// Priority is the fixed tie-break order, highest priority first.
	Priority []string `yaml:"priority"`
	// Handlers maps handler name → routing signals.
	Handlers map[string]HandlerRouting `yaml:"handlers"`
}

// HandlerRouting is the per-handler signal set.
type HandlerRouting struct {
	// Keywords score a partial hit each.
	Keywords []string `yaml:"keywords"`
	// Phrases score a strong hit each (substring match).
	Phrases []string `yaml:"phrases"`
	// SlotPrefixes bias toward this handler when the session holds a
	// slot with one of these prefixes.
	SlotPrefixes []string `yaml:"slot_prefixes"`
	// Continuity biases toward this handler when it handled the
	// previous turn and one of its ContinuitySlots is set.
	ContinuitySlots []string `yaml:"continuity_slots"`
}

// Load reads configuration from environment variables with sensible
// defaults. Routing defaults cover the built-in handler set; an optional
// YAML file (MAJORDOMO_ROUTING_FILE) overrides them.
func Load() *Config {
	cfg := &Config{
		Port:    envInt("MAJORDOMO_PORT", 8080),
		Version: envStr("MAJORDOMO_VERSION", "0.2.0"),
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "majordomo"),
		},
		Session: SessionConfig{
			RedisURL: envStr("MAJORDOMO_REDIS_URL", ""),
		},
		Executor: ExecutorConfig{
			MaxCycles:          envInt("MAJORDOMO_MAX_CYCLES", 3),
			MaxToolConcurrency: envInt("MAJORDOMO_MAX_TOOL_CONCURRENCY", 4),
			ToolTimeout:        envDuration("MAJORDOMO_TOOL_TIMEOUT", 10*time.Second),
			SafetyHandler:      envStr("MAJORDOMO_SAFETY_HANDLER", "safety"),
		},
		Routing: DefaultRouting(),
		Journal: JournalConfig{
			Path: envStr("MAJORDOMO_JOURNAL_PATH", "majordomo_journal.db"),
		},
		Tools: ToolsConfig{
			WikiEndpoint:   envStr("MAJORDOMO_WIKI_ENDPOINT", "https://en.wikipedia.org/w/api.php"),
			SearchEndpoint: envStr("MAJORDOMO_SEARCH_ENDPOINT", ""),
			SearchAPIKey:   envStr("MAJORDOMO_SEARCH_API_KEY", ""),
		},
	}

	if path := os.Getenv("MAJORDOMO_ROUTING_FILE"); path != "" {
		routing, err := LoadRoutingFile(path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("routing file ignored, using built-in defaults")
		} else {
			cfg.Routing = *routing
		}
	}
	return cfg
}

// LoadRoutingFile parses a YAML routing configuration. Fields left empty
// fall back to the built-in defaults.
func LoadRoutingFile(path string) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing file: %w", err)
	}
	routing := DefaultRouting()
	if err := yaml.Unmarshal(data, &routing); err != nil {
		return nil, fmt.Errorf("parse routing file: %w", err)
	}
	if routing.Floor <= 0 {
		routing.Floor = DefaultRouting().Floor
	}
	if routing.Epsilon <= 0 {
		routing.Epsilon = DefaultRouting().Epsilon
	}
	if routing.DefaultHandler == "" {
		routing.DefaultHandler = DefaultRouting().DefaultHandler
	}
	return &routing, nil
}

// DefaultRouting returns the built-in routing table for the stock handler
// set. Scheduling and journal phrases are checked with higher weight than
// knowledge triggers so "add X to my calendar" reaches the scribe, not
// the oracle.
func DefaultRouting() RoutingConfig {
	return RoutingConfig{
		Floor:          0.45,
		Epsilon:        0.05,
		DefaultHandler: "majordomo",
		Priority:       []string{"scribe", "sentinel", "oracle", "majordomo"},
		Handlers: map[string]HandlerRouting{
			"scribe": {
				Keywords: []string{"journal", "diary", "calendar", "reminder"},
				Phrases: []string{
					"to my calendar", "in my calendar", "on my calendar",
					"schedule", "book in", "set a reminder", "remind me",
					"create an event", "create event",
					"note to self", "log this", "log:", "write this down",
					"record this", "remember that",
					"what have i been", "patterns in my notes",
				},
				SlotPrefixes:    []string{"journal.", "calendar."},
				ContinuitySlots: []string{"calendar.pending_event"},
			},
			"sentinel": {
				Keywords: []string{"lights", "thermostat", "heating", "aircon"},
				Phrases: []string{
					"light on", "light off", "turn on the lights",
					"turn off the lights", "smart plug", "lock the door",
					"unlock the door", "front door", "garage door",
				},
				SlotPrefixes:    []string{"home."},
				ContinuitySlots: []string{"home.pending_action"},
			},
			"oracle": {
				Keywords: []string{
					"who", "what", "when", "where", "why", "how",
					"latest", "news", "update", "price", "score",
					"result", "weather", "population", "definition",
					"meaning", "history", "information",
				},
				Phrases: []string{"?"},
			},
			"majordomo": {},
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
