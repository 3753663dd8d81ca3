package tools

import (
	"context"
	"fmt"
	"sync"
)

// knownDevices are the controllable fixtures and their accepted states.
var knownDevices = map[string][]string{
	"lights.living_room": {"on", "off", "dim"},
	"lights.bedroom":     {"on", "off", "dim"},
	"lights.kitchen":     {"on", "off", "dim"},
	"lock.front_door":    {"locked", "unlocked"},
	"lock.back_door":     {"locked", "unlocked"},
	"thermostat":         {"heat", "cool", "off"},
}

// Home is an in-memory smart-home state store.
type Home struct {
	mu    sync.Mutex
	state map[string]string // device → state
}

// NewHome creates a home store with every device in its default state.
func NewHome() *Home {
	state := map[string]string{
		"lights.living_room": "off",
		"lights.bedroom":     "off",
		"lights.kitchen":     "off",
		"lock.front_door":    "locked",
		"lock.back_door":     "locked",
		"thermostat":         "off",
	}
	return &Home{state: state}
}

func (h *Home) snapshot() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]string, len(h.state))
	for k, v := range h.state {
		out[k] = v
	}
	return out
}

func (h *Home) set(device, state string) error {
	allowed, ok := knownDevices[device]
	if !ok {
		return fmt.Errorf("%w: unknown device %q", ErrInvalidArgs, device)
	}
	valid := false
	for _, s := range allowed {
		if s == state {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: device %q does not support state %q", ErrInvalidArgs, device, state)
	}
	h.mu.Lock()
	h.state[device] = state
	h.mu.Unlock()
	return nil
}

// ── home.get_state ──────────────────────────────────────────

// HomeGetState reads device states.
type HomeGetState struct {
	home *Home
}

// NewHomeGetState creates the home.get_state tool.
func NewHomeGetState(h *Home) *HomeGetState { return &HomeGetState{home: h} }

func (t *HomeGetState) Name() string     { return "home.get_state" }
func (t *HomeGetState) Idempotent() bool { return true }

// Invoke reads state. Args: device (optional, all devices when absent).
// Result: devices (map of device → state).
func (t *HomeGetState) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := t.home.snapshot()
	if device := optStringArg(args, "device", ""); device != "" {
		state, ok := snap[device]
		if !ok {
			return nil, fmt.Errorf("%w: unknown device %q", ErrInvalidArgs, device)
		}
		return map[string]any{"devices": map[string]any{device: state}}, nil
	}
	devices := make(map[string]any, len(snap))
	for k, v := range snap {
		devices[k] = v
	}
	return map[string]any{"devices": devices}, nil
}

// ── home.set_state ──────────────────────────────────────────

// HomeSetState changes one device's state. Setting a device to a state it
// is already in is a no-op, so retries are harmless despite the tool
// being a mutation.
type HomeSetState struct {
	home *Home
}

// NewHomeSetState creates the home.set_state tool.
func NewHomeSetState(h *Home) *HomeSetState { return &HomeSetState{home: h} }

func (t *HomeSetState) Name() string     { return "home.set_state" }
func (t *HomeSetState) Idempotent() bool { return true }

// Invoke sets state. Args: device, state. Result: device, state.
func (t *HomeSetState) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	device, err := stringArg(args, "device")
	if err != nil {
		return nil, err
	}
	state, err := stringArg(args, "state")
	if err != nil {
		return nil, err
	}
	if err := t.home.set(device, state); err != nil {
		return nil, err
	}
	return map[string]any{"device": device, "state": state}, nil
}
