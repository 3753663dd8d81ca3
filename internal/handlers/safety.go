package handlers

import (
	"context"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

// SafetyReply is the fixed reply the safety handler produces. It is the
// last line of defense, so it never depends on tools or session state.
const SafetyReply = "I'm sorry — something went wrong handling that request. Please try again."

// Safety is the terminal fallback handler. It requests no tools and
// always converges on its first decide call.
type Safety struct{}

// NewSafety creates the safety handler.
func NewSafety() *Safety { return &Safety{} }

func (h *Safety) Name() string    { return "safety" }
func (h *Safety) Tools() []string { return nil }

// Decide always returns the fixed safe reply.
func (h *Safety) Decide(ctx context.Context, tc *models.TurnContext) (*models.Decision, error) {
	return &models.Decision{Output: SafetyReply}, nil
}
