// Package tools provides the capability adapters handlers may request:
// knowledge lookup, live search, calendar, journal, smart-home state, and
// the human approval gate. Adapters are thin; orchestration semantics
// (timeouts, concurrency, retries) live in the executor.
package tools

import (
	"errors"
	"fmt"
)

// Capability failure kinds. The executor records these as invocation
// errors; handlers treat them as data.
var (
	ErrInvalidArgs = errors.New("invalid arguments")
	ErrUnavailable = errors.New("capability unavailable")
)

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidArgs, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidArgs, key)
	}
	return s, nil
}

// optStringArg extracts an optional string argument.
func optStringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// intArg extracts an optional integer argument, accepting float64 from
// JSON-decoded maps.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
