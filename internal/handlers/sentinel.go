package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

// Sentinel controls the smart home. Reads go straight to home.get_state;
// mutations are gated on human.approve first, and only an approved
// action reaches home.set_state. The post-mutation batch also rereads
// state so the confirmation reflects what the house actually did.
type Sentinel struct{}

// NewSentinel creates the smart-home handler.
func NewSentinel() *Sentinel { return &Sentinel{} }

func (h *Sentinel) Name() string { return "sentinel" }

func (h *Sentinel) Tools() []string {
	return []string{"home.get_state", "home.set_state", "human.approve"}
}

func (h *Sentinel) Decide(ctx context.Context, tc *models.TurnContext) (*models.Decision, error) {
	device, state := parseHomeCommand(tc.Message)

	if tc.Cycle == 0 {
		if device == "" {
			// No recognizable mutation: treat as a status query.
			return &models.Decision{
				Requests: []models.ToolRequest{{Tool: "home.get_state", Args: map[string]any{}}},
			}, nil
		}
		return &models.Decision{
			Requests: []models.ToolRequest{{
				Tool: "human.approve",
				Args: map[string]any{"action": fmt.Sprintf("set %s to %s", device, state)},
			}},
		}, nil
	}

	if set := tc.Invocation("home.set_state"); set != nil {
		return h.confirm(set, tc.Invocation("home.get_state")), nil
	}

	if approve := tc.Invocation("human.approve"); approve != nil {
		if !succeeded(approve) {
			return &models.Decision{Output: "I couldn't reach the approval gate, so I left the house as it is."}, nil
		}
		if !resultBool(approve.Result, "approved") {
			return &models.Decision{
				Output: fmt.Sprintf("I won't do that without in-person confirmation (%s).",
					resultString(approve.Result, "reason")),
			}, nil
		}
		return &models.Decision{
			Requests: []models.ToolRequest{
				{Tool: "home.set_state", Args: map[string]any{"device": device, "state": state}},
				{Tool: "home.get_state", Args: map[string]any{"device": device}},
			},
		}, nil
	}

	return h.report(tc.Invocation("home.get_state")), nil
}

func (h *Sentinel) confirm(set, get *models.ToolInvocation) *models.Decision {
	if !succeeded(set) {
		return &models.Decision{Output: "The house didn't take that command. Nothing was changed; please try again."}
	}
	device := resultString(set.Result, "device")
	state := resultString(set.Result, "state")
	out := fmt.Sprintf("Done — %s is now %s.", deviceLabel(device), state)
	if succeeded(get) {
		if devices, ok := get.Result["devices"].(map[string]any); ok {
			if actual, ok := devices[device].(string); ok && actual != state {
				out = fmt.Sprintf("I sent the command, but %s is reporting %s.", deviceLabel(device), actual)
			}
		}
	}
	return &models.Decision{
		Output:      out,
		SlotUpdates: map[string]any{"home.last_device": device},
	}
}

func (h *Sentinel) report(get *models.ToolInvocation) *models.Decision {
	if !succeeded(get) {
		return &models.Decision{Output: "I couldn't read the house state right now."}
	}
	devices, _ := get.Result["devices"].(map[string]any)
	if len(devices) == 0 {
		return &models.Decision{Output: "No devices are reporting."}
	}
	var b strings.Builder
	b.WriteString("House status:")
	for _, device := range deviceOrder {
		if state, ok := devices[device].(string); ok {
			b.WriteString(fmt.Sprintf("\n- %s: %s", deviceLabel(device), state))
		}
	}
	return &models.Decision{Output: b.String()}
}

// deviceOrder keeps status reports stable.
var deviceOrder = []string{
	"lights.living_room", "lights.bedroom", "lights.kitchen",
	"lock.front_door", "lock.back_door", "thermostat",
}

func deviceLabel(device string) string {
	return strings.NewReplacer(".", " ", "_", " ").Replace(device)
}

// parseHomeCommand recognizes light and lock mutations. Returns empty
// device for anything it cannot parse, which downgrades the turn to a
// status read.
func parseHomeCommand(message string) (device, state string) {
	lower := strings.ToLower(message)

	// Questions are reads, not commands.
	if containsAny(lower, "status", "is the", "are the", "?") {
		return "", ""
	}

	room := "living_room"
	switch {
	case strings.Contains(lower, "bedroom"):
		room = "bedroom"
	case strings.Contains(lower, "kitchen"):
		room = "kitchen"
	}

	door := "front_door"
	if strings.Contains(lower, "back door") || strings.Contains(lower, "back_door") {
		door = "back_door"
	}

	switch {
	case strings.Contains(lower, "light"):
		switch {
		case containsAny(lower, "off"):
			return "lights." + room, "off"
		case containsAny(lower, "dim"):
			return "lights." + room, "dim"
		case containsAny(lower, "on"):
			return "lights." + room, "on"
		}
	case strings.Contains(lower, "unlock"):
		return "lock." + door, "unlocked"
	case strings.Contains(lower, "lock"):
		return "lock." + door, "locked"
	case strings.Contains(lower, "thermostat") || strings.Contains(lower, "heat"):
		switch {
		case containsAny(lower, "cool"):
			return "thermostat", "cool"
		case containsAny(lower, "off"):
			return "thermostat", "off"
		case containsAny(lower, "heat", "warm"):
			return "thermostat", "heat"
		}
	}
	return "", ""
}
