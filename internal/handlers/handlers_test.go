package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

func ctxWith(message string, cycle int, invs ...models.ToolInvocation) *models.TurnContext {
	return &models.TurnContext{
		Message:     message,
		Session:     &models.Session{Slots: map[string]any{}},
		Invocations: invs,
		Cycle:       cycle,
	}
}

func settled(tool string, status models.InvocationStatus, result map[string]any) models.ToolInvocation {
	return models.ToolInvocation{ID: tool + "-inv", Tool: tool, Status: status, Result: result}
}

// ── safety ──────────────────────────────────────────────────

func TestSafetyAlwaysFinalAndNonEmpty(t *testing.T) {
	d, err := NewSafety().Decide(context.Background(), ctxWith("anything", 0))
	require.NoError(t, err)
	require.True(t, d.Final())
	require.NotEmpty(t, d.Output)
}

// ── majordomo ───────────────────────────────────────────────

func TestMajordomoClarifiesAmbiguousRoute(t *testing.T) {
	tc := ctxWith("banana banana", 0)
	tc.Route = models.RouteDecision{Handler: "majordomo", Rationale: models.RationaleAmbiguous}

	d, err := NewMajordomo().Decide(context.Background(), tc)
	require.NoError(t, err)
	require.True(t, d.Final())
	require.Contains(t, d.Output, "rephrase")
}

func TestMajordomoGreets(t *testing.T) {
	d, err := NewMajordomo().Decide(context.Background(), ctxWith("hello there", 0))
	require.NoError(t, err)
	require.True(t, d.Final())
	require.NotEmpty(t, d.Output)
}

// ── oracle ──────────────────────────────────────────────────

func TestOraclePicksWikiForTimelessQuestion(t *testing.T) {
	d, err := NewOracle().Decide(context.Background(), ctxWith("Who was Ada Lovelace?", 0))
	require.NoError(t, err)
	require.False(t, d.Final())
	require.Len(t, d.Requests, 1)
	require.Equal(t, "wiki.search", d.Requests[0].Tool)
	require.Equal(t, "Ada Lovelace", d.Requests[0].Args["query"])
}

func TestOraclePicksWebForTimeSensitiveQuestion(t *testing.T) {
	d, err := NewOracle().Decide(context.Background(), ctxWith("What is the weather today?", 0))
	require.NoError(t, err)
	require.Len(t, d.Requests, 1)
	require.Equal(t, "web.search", d.Requests[0].Tool)
}

func TestOracleComposesAnswerFromResults(t *testing.T) {
	inv := settled("wiki.search", models.InvocationSucceeded, map[string]any{
		"results": []map[string]any{
			{"title": "Ada Lovelace", "snippet": "English mathematician"},
		},
		"count": 1,
	})
	d, err := NewOracle().Decide(context.Background(), ctxWith("Who was Ada Lovelace?", 1, inv))
	require.NoError(t, err)
	require.True(t, d.Final())
	require.Contains(t, d.Output, "Ada Lovelace")
}

func TestOracleFallsBackToAlternateSource(t *testing.T) {
	inv := settled("wiki.search", models.InvocationTimedOut, nil)
	d, err := NewOracle().Decide(context.Background(), ctxWith("Who was Ada Lovelace?", 1, inv))
	require.NoError(t, err)
	require.False(t, d.Final())
	require.Equal(t, "web.search", d.Requests[0].Tool)
}

func TestOracleDegradesWhenBothSourcesFail(t *testing.T) {
	d, err := NewOracle().Decide(context.Background(), ctxWith("Who was Ada Lovelace?", 2,
		settled("wiki.search", models.InvocationTimedOut, nil),
		settled("web.search", models.InvocationFailed, nil),
	))
	require.NoError(t, err)
	require.True(t, d.Final())
	require.NotEmpty(t, d.Output)
}

// ── scribe ──────────────────────────────────────────────────

func TestScribeLogModeIsDirect(t *testing.T) {
	d, err := NewScribe().Decide(context.Background(), ctxWith("Log: stressful day at work", 0))
	require.NoError(t, err)
	require.True(t, d.Final())
	require.Contains(t, d.Output, "stressful day at work")
	require.Equal(t, "stressful day at work", d.SlotUpdates["journal.last_log"])
}

func TestScribeRecordModeSavesEntry(t *testing.T) {
	scribe := NewScribe()

	d, err := scribe.Decide(context.Background(), ctxWith("Record that the garden is finally planted", 0))
	require.NoError(t, err)
	require.Len(t, d.Requests, 1)
	require.Equal(t, "journal.save", d.Requests[0].Tool)

	save := settled("journal.save", models.InvocationSucceeded, map[string]any{"entry_id": "e1", "created": true})
	d, err = scribe.Decide(context.Background(), ctxWith("Record that the garden is finally planted", 1, save))
	require.NoError(t, err)
	require.True(t, d.Final())
	require.Equal(t, "e1", d.SlotUpdates["journal.last_entry"])
}

func TestScribeReflectFansOut(t *testing.T) {
	d, err := NewScribe().Decide(context.Background(), ctxWith("How have I been about work lately?", 0))
	require.NoError(t, err)
	require.Len(t, d.Requests, 2)

	tools := []string{d.Requests[0].Tool, d.Requests[1].Tool}
	require.Contains(t, tools, "journal.recent")
	require.Contains(t, tools, "journal.search")
}

func TestScribeScheduleCreatesEvent(t *testing.T) {
	scribe := NewScribe()

	d, err := scribe.Decide(context.Background(), ctxWith("Schedule dentist tomorrow", 0))
	require.NoError(t, err)
	require.Len(t, d.Requests, 1)
	require.Equal(t, "calendar.create_event", d.Requests[0].Tool)
	require.Equal(t, "dentist tomorrow", d.Requests[0].Args["title"])

	create := settled("calendar.create_event", models.InvocationSucceeded, map[string]any{"event_id": "ev1"})
	d, err = scribe.Decide(context.Background(), ctxWith("Schedule dentist tomorrow", 1, create))
	require.NoError(t, err)
	require.True(t, d.Final())
	require.Equal(t, "ev1", d.SlotUpdates["calendar.last_event"])
}

func TestScribeScheduleDegradedOnFailure(t *testing.T) {
	create := settled("calendar.create_event", models.InvocationTimedOut, nil)
	d, err := NewScribe().Decide(context.Background(), ctxWith("Schedule dentist tomorrow", 1, create))
	require.NoError(t, err)
	require.True(t, d.Final())
	require.Contains(t, d.Output, "Nothing was scheduled")
}

// ── sentinel ────────────────────────────────────────────────

func TestSentinelGatesMutationOnApproval(t *testing.T) {
	sentinel := NewSentinel()
	message := "Turn on the kitchen lights"

	d, err := sentinel.Decide(context.Background(), ctxWith(message, 0))
	require.NoError(t, err)
	require.Len(t, d.Requests, 1)
	require.Equal(t, "human.approve", d.Requests[0].Tool)

	approve := settled("human.approve", models.InvocationSucceeded, map[string]any{"approved": true})
	d, err = sentinel.Decide(context.Background(), ctxWith(message, 1, approve))
	require.NoError(t, err)
	require.Len(t, d.Requests, 2)
	require.Equal(t, "home.set_state", d.Requests[0].Tool)
	require.Equal(t, "lights.kitchen", d.Requests[0].Args["device"])
	require.Equal(t, "on", d.Requests[0].Args["state"])

	set := settled("home.set_state", models.InvocationSucceeded, map[string]any{"device": "lights.kitchen", "state": "on"})
	get := settled("home.get_state", models.InvocationSucceeded, map[string]any{"devices": map[string]any{"lights.kitchen": "on"}})
	d, err = sentinel.Decide(context.Background(), ctxWith(message, 2, approve, set, get))
	require.NoError(t, err)
	require.True(t, d.Final())
	require.True(t, strings.Contains(d.Output, "lights kitchen"))
}

func TestSentinelDeclinedApprovalStopsMutation(t *testing.T) {
	message := "Unlock the front door"
	approve := settled("human.approve", models.InvocationSucceeded, map[string]any{
		"approved": false, "reason": "action requires in-person confirmation",
	})
	d, err := NewSentinel().Decide(context.Background(), ctxWith(message, 1, approve))
	require.NoError(t, err)
	require.True(t, d.Final())
	require.Contains(t, d.Output, "won't do that")
}

func TestSentinelStatusQueryReadsState(t *testing.T) {
	d, err := NewSentinel().Decide(context.Background(), ctxWith("What's the status of the house?", 0))
	require.NoError(t, err)
	require.Len(t, d.Requests, 1)
	require.Equal(t, "home.get_state", d.Requests[0].Tool)
}

func TestParseHomeCommand(t *testing.T) {
	cases := []struct {
		message string
		device  string
		state   string
	}{
		{"Turn off the bedroom lights", "lights.bedroom", "off"},
		{"Dim the lights", "lights.living_room", "dim"},
		{"Lock the back door", "lock.back_door", "locked"},
		{"Unlock the front door", "lock.front_door", "unlocked"},
		{"Set the thermostat to cool", "thermostat", "cool"},
		{"Is the front door locked?", "", ""},
	}
	for _, c := range cases {
		device, state := parseHomeCommand(c.message)
		require.Equal(t, c.device, device, c.message)
		require.Equal(t, c.state, state, c.message)
	}
}
