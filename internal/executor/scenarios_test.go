package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/majordomo-ai/majordomo/internal/config"
	"github.com/majordomo-ai/majordomo/internal/handlers"
	"github.com/majordomo-ai/majordomo/internal/registry"
	"github.com/majordomo-ai/majordomo/internal/router"
	"github.com/majordomo-ai/majordomo/internal/session"
	"github.com/majordomo-ai/majordomo/pkg/models"
)

// End-to-end turns through the real router and handler set, with the
// external capabilities stubbed at the tool boundary.

func newAssistant(t *testing.T, cfg config.ExecutorConfig, tools ...registry.Tool) *Engine {
	t.Helper()
	reg := registry.New()
	for _, tool := range tools {
		reg.RegisterTool(tool)
	}
	reg.RegisterHandler(handlers.NewScribe())
	reg.RegisterHandler(handlers.NewSentinel())
	reg.RegisterHandler(handlers.NewOracle())
	reg.RegisterHandler(handlers.NewMajordomo())
	reg.RegisterHandler(handlers.NewSafety())

	return New(reg, session.NewMemoryStore(), router.New(config.DefaultRouting()), cfg)
}

func TestKnowledgeQuestionEndToEnd(t *testing.T) {
	wiki := &stubTool{name: "wiki.search", idempotent: true, result: map[string]any{
		"results": []map[string]any{
			{"title": "The Ashes", "snippet": "Test cricket series between England and Australia"},
		},
		"count": 1,
	}}
	engine := newAssistant(t, config.ExecutorConfig{}, wiki)

	turn, _, err := engine.RunTurn(context.Background(), "", "Who won the Ashes last year?")
	require.NoError(t, err)
	require.Equal(t, "oracle", turn.Route.Handler)
	require.GreaterOrEqual(t, turn.Route.Confidence, 0.45)
	require.Equal(t, models.TurnCompleted, turn.Status)
	require.Contains(t, turn.Output, "The Ashes")
	require.Len(t, turn.Invocations, 1)
	require.Equal(t, models.InvocationSucceeded, turn.Invocations[0].Status)
}

func TestQuickLogEndToEnd(t *testing.T) {
	engine := newAssistant(t, config.ExecutorConfig{})

	turn, sess, err := engine.RunTurn(context.Background(), "", "Log: stressful day")
	require.NoError(t, err)
	require.Equal(t, "scribe", turn.Route.Handler)
	require.Equal(t, models.TurnCompleted, turn.Status)
	require.Contains(t, turn.Output, "stressful day")
	// No tool batch at all for a quick note.
	require.Empty(t, turn.Invocations)
	require.Equal(t, "stressful day", sess.Slots["journal.last_log"])
}

func TestCalendarTimeoutDegradesEndToEnd(t *testing.T) {
	calendar := &stubTool{name: "calendar.create_event", delay: time.Second}
	engine := newAssistant(t, config.ExecutorConfig{ToolTimeout: 30 * time.Millisecond}, calendar)

	turn, _, err := engine.RunTurn(context.Background(), "", "Schedule dentist for tomorrow")
	require.NoError(t, err)
	require.Equal(t, "scribe", turn.Route.Handler)
	require.Equal(t, models.TurnCompleted, turn.Status)
	require.Contains(t, turn.Output, "Nothing was scheduled")
	require.Equal(t, models.InvocationTimedOut, turn.Invocations[0].Status)
}

func TestSmartHomeApprovalFlowEndToEnd(t *testing.T) {
	approve := &stubTool{name: "human.approve", idempotent: true,
		result: map[string]any{"approved": true, "reason": "auto-approved"}}
	set := &stubTool{name: "home.set_state", idempotent: true,
		result: map[string]any{"device": "lights.living_room", "state": "on"}}
	get := &stubTool{name: "home.get_state", idempotent: true,
		result: map[string]any{"devices": map[string]any{"lights.living_room": "on"}}}
	engine := newAssistant(t, config.ExecutorConfig{}, approve, set, get)

	turn, _, err := engine.RunTurn(context.Background(), "", "Turn on the lights please")
	require.NoError(t, err)
	require.Equal(t, "sentinel", turn.Route.Handler)
	require.Equal(t, models.TurnCompleted, turn.Status)
	require.Contains(t, turn.Output, "lights living room")
	require.Len(t, turn.Invocations, 3)
	require.Equal(t, 2, turn.Cycles)
}

func TestAmbiguousMessageAsksForClarification(t *testing.T) {
	engine := newAssistant(t, config.ExecutorConfig{})

	turn, _, err := engine.RunTurn(context.Background(), "", "banana banana banana")
	require.NoError(t, err)
	require.Equal(t, "majordomo", turn.Route.Handler)
	require.True(t, turn.Route.Ambiguous())
	require.Equal(t, models.TurnCompleted, turn.Status)
	require.Contains(t, turn.Output, "rephrase")
}
