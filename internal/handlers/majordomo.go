package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

// Majordomo is the hub handler and routing default. It answers greetings
// and capability questions itself, and turns ambiguous routes into a
// clarifying question instead of guessing. It never calls tools.
type Majordomo struct{}

// NewMajordomo creates the hub handler.
func NewMajordomo() *Majordomo { return &Majordomo{} }

func (h *Majordomo) Name() string    { return "majordomo" }
func (h *Majordomo) Tools() []string { return nil }

// Decide replies in a single cycle.
func (h *Majordomo) Decide(ctx context.Context, tc *models.TurnContext) (*models.Decision, error) {
	message := strings.TrimSpace(tc.Message)

	switch {
	case tc.Route.Ambiguous():
		return &models.Decision{
			Output: fmt.Sprintf("I'm not sure what you'd like me to do with %q. "+
				"I can answer questions, manage your calendar and journal, or control the home — "+
				"could you rephrase?", message),
		}, nil
	case message == "":
		return &models.Decision{Output: "I'm listening — what can I do for you?"}, nil
	case containsAny(message, "hello", "hi ", "hey", "good morning", "good evening"):
		return &models.Decision{Output: "Hello! I can answer questions, keep your calendar and journal, and run the house. What do you need?"}, nil
	case containsAny(message, "help", "what can you do"):
		return &models.Decision{
			Output: "I can look things up for you, schedule events, keep a journal, and control lights and locks. Just ask in plain language.",
		}, nil
	case containsAny(message, "thank"):
		return &models.Decision{Output: "You're welcome."}, nil
	}

	return &models.Decision{
		Output: "Happy to help. Ask me a question, or tell me to schedule something, journal something, or adjust the house.",
	}, nil
}
