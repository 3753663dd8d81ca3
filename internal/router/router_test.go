package router_test

import (
	"testing"

	"github.com/majordomo-ai/majordomo/internal/config"
	"github.com/majordomo-ai/majordomo/internal/router"
	"github.com/majordomo-ai/majordomo/pkg/models"
)

func newTestRouter(t *testing.T) *router.Router {
	t.Helper()
	return router.New(config.DefaultRouting())
}

func TestRouteKnowledgeQuestion(t *testing.T) {
	r := newTestRouter(t)

	d := r.Route("Who won the Ashes last year?", nil)
	if d.Handler != "oracle" {
		t.Fatalf("Handler = %q, want oracle", d.Handler)
	}
	if d.Confidence < config.DefaultRouting().Floor {
		t.Errorf("Confidence = %.2f, want >= floor %.2f", d.Confidence, config.DefaultRouting().Floor)
	}
}

func TestRouteSchedulingBeatsKnowledge(t *testing.T) {
	// "add X to my calendar" must hit scribe, not oracle, even when the
	// message also looks like a question.
	r := newTestRouter(t)

	d := r.Route("Can you add dinner with Sam to my calendar?", nil)
	if d.Handler != "scribe" {
		t.Fatalf("Handler = %q, want scribe", d.Handler)
	}
}

func TestRouteJournalEntry(t *testing.T) {
	r := newTestRouter(t)

	d := r.Route("Log: stressful day", nil)
	if d.Handler != "scribe" {
		t.Fatalf("Handler = %q, want scribe", d.Handler)
	}
}

func TestRouteSmartHome(t *testing.T) {
	r := newTestRouter(t)

	d := r.Route("turn off the lights please", nil)
	if d.Handler != "sentinel" {
		t.Fatalf("Handler = %q, want sentinel", d.Handler)
	}
}

func TestRouteAmbiguousFallsBackToDefault(t *testing.T) {
	r := newTestRouter(t)
	cfg := config.DefaultRouting()

	d := r.Route("thanks", nil)
	if d.Handler != cfg.DefaultHandler {
		t.Fatalf("Handler = %q, want default %q", d.Handler, cfg.DefaultHandler)
	}
	if !d.Ambiguous() {
		t.Error("expected ambiguous rationale")
	}
	want := cfg.Floor - cfg.Epsilon
	if d.Confidence != want {
		t.Errorf("Confidence = %.3f, want floor-epsilon = %.3f", d.Confidence, want)
	}
}

func TestRouteDefaultHandlerWinsOnItsOwnSignals(t *testing.T) {
	// When the default handler matches a phrase outright it is a real
	// routing decision, not an ambiguity fallback: full confidence, no
	// clamping to floor-epsilon.
	cfg := config.RoutingConfig{
		Floor:          0.45,
		Epsilon:        0.05,
		DefaultHandler: "hub",
		Handlers: map[string]config.HandlerRouting{
			"hub":   {Phrases: []string{"good morning"}},
			"other": {Keywords: []string{"weather"}},
		},
	}
	r := router.New(cfg)

	d := r.Route("good morning!", nil)
	if d.Handler != "hub" {
		t.Fatalf("Handler = %q, want hub", d.Handler)
	}
	if d.Confidence < cfg.Floor {
		t.Errorf("Confidence = %.2f, want >= floor %.2f", d.Confidence, cfg.Floor)
	}
	if d.Ambiguous() {
		t.Error("phrase match on the default handler flagged ambiguous")
	}
}

func TestRouteDeterministicTieBreak(t *testing.T) {
	cfg := config.RoutingConfig{
		Floor:          0.4,
		Epsilon:        0.05,
		DefaultHandler: "hub",
		Priority:       []string{"beta", "alpha"},
		Handlers: map[string]config.HandlerRouting{
			"alpha": {Phrases: []string{"same phrase"}},
			"beta":  {Phrases: []string{"same phrase"}},
			"hub":   {},
		},
	}
	r := router.New(cfg)

	// Both candidates score identically; the fixed priority order must
	// decide, regardless of how many times we route.
	for i := 0; i < 10; i++ {
		d := r.Route("same phrase here", nil)
		if d.Handler != "beta" {
			t.Fatalf("Handler = %q, want beta (priority order)", d.Handler)
		}
	}
}

func TestRouteContinuityBias(t *testing.T) {
	r := newTestRouter(t)

	// A pending calendar slot opened by scribe biases a vague follow-up
	// toward scribe instead of the default handler.
	session := &models.Session{
		Slots: map[string]any{"calendar.pending_event": "dinner"},
		Turns: []models.Turn{{
			Index: 0,
			Route: models.RouteDecision{Handler: "scribe", Confidence: 0.8},
		}},
	}

	d := r.Route("yes please schedule it", session)
	if d.Handler != "scribe" {
		t.Fatalf("Handler = %q, want scribe via continuity", d.Handler)
	}
	if d.Rationale != models.RationaleContinuity && d.Rationale != models.RationaleKeyword {
		t.Errorf("unexpected rationale %q", d.Rationale)
	}
}

func TestRouteFallbacksExcludeDefault(t *testing.T) {
	r := newTestRouter(t)

	d := r.Route("what is the weather today?", nil)
	for _, fb := range d.Fallbacks {
		if fb == config.DefaultRouting().DefaultHandler {
			t.Errorf("fallback list contains default handler %q", fb)
		}
	}
}

func TestRoutePure(t *testing.T) {
	r := newTestRouter(t)
	session := &models.Session{Slots: map[string]any{"journal.last_entry": "x"}}

	before := len(session.Slots)
	r.Route("log this: good day", session)
	if len(session.Slots) != before {
		t.Error("Route mutated the session")
	}
}
