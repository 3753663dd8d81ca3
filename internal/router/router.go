// Package router implements the Majordomo intent router.
//
// The router maps (message, session snapshot) to a ranked handler decision
// using keyword and phrase signals, slot presence, and prior-turn
// continuity. It is pure with respect to external state: it reads the
// session snapshot only and records nothing itself.
package router

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/majordomo-ai/majordomo/internal/config"
	"github.com/majordomo-ai/majordomo/pkg/models"
)

// Signal weights. Phrases are strong intent markers; keywords are weak
// ones; slot presence and continuity nudge toward handlers with open
// business in the session.
const (
	phraseWeight     = 0.50
	keywordWeight    = 0.20
	slotWeight       = 0.15
	continuityWeight = 0.25
)

// Router scores registered handlers for each incoming message.
type Router struct {
	cfg config.RoutingConfig

	// names in deterministic priority order, used for tie-breaking
	priority map[string]int
	names    []string
}

// New creates a router from the routing configuration. Handlers absent
// from cfg.Priority rank after listed ones, ordered by name.
func New(cfg config.RoutingConfig) *Router {
	r := &Router{
		cfg:      cfg,
		priority: make(map[string]int, len(cfg.Priority)),
	}
	for i, name := range cfg.Priority {
		r.priority[name] = i
	}
	for name := range cfg.Handlers {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

type candidate struct {
	name      string
	score     float64
	rationale string
}

// Route produces the turn's RouteDecision. If no handler clears the
// confidence floor, the configured default handler is selected with
// confidence floor−epsilon so downstream logic can detect the ambiguous
// route and ask a clarifying question instead of acting.
func (r *Router) Route(message string, session *models.Session) models.RouteDecision {
	text := strings.ToLower(strings.TrimSpace(message))
	tokens := tokenize(text)

	candidates := make([]candidate, 0, len(r.names))
	for _, name := range r.names {
		candidates = append(candidates, r.score(name, text, tokens, session))
	}

	// Highest score first; ties broken by the fixed priority order,
	// never by arrival order or randomness.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return r.rank(candidates[i].name) < r.rank(candidates[j].name)
	})

	best := candidates[0]
	fallbacks := make([]string, 0, len(candidates)-1)
	for _, c := range candidates[1:] {
		if c.name != r.cfg.DefaultHandler {
			fallbacks = append(fallbacks, c.name)
		}
	}

	if best.score < r.cfg.Floor {
		return models.RouteDecision{
			Handler:    r.cfg.DefaultHandler,
			Confidence: r.cfg.Floor - r.cfg.Epsilon,
			Fallbacks:  fallbacks,
			Rationale:  models.RationaleAmbiguous,
		}
	}

	return models.RouteDecision{
		Handler:    best.name,
		Confidence: best.score,
		Fallbacks:  fallbacks,
		Rationale:  best.rationale,
	}
}

// score computes one handler's confidence from its configured signals.
func (r *Router) score(name, text string, tokens map[string]bool, session *models.Session) candidate {
	hr := r.cfg.Handlers[name]
	c := candidate{name: name, rationale: models.RationaleKeyword}

	for _, phrase := range hr.Phrases {
		if strings.Contains(text, phrase) {
			c.score += phraseWeight
		}
	}
	for _, kw := range hr.Keywords {
		if tokens[kw] {
			c.score += keywordWeight
		}
	}

	if session != nil {
		for _, prefix := range hr.SlotPrefixes {
			if hasSlotWithPrefix(session, prefix) {
				c.score += slotWeight
				c.rationale = models.RationaleSlot
				break
			}
		}

		// Prior-turn continuity: an open slot pending confirmation
		// biases toward the handler that opened it.
		if last := session.LastTurn(); last != nil && last.Route.Handler == name {
			for _, slot := range hr.ContinuitySlots {
				if _, ok := session.Slot(slot); ok {
					c.score += continuityWeight
					c.rationale = models.RationaleContinuity
					break
				}
			}
		}
	}

	c.score = math.Min(c.score, 1.0)
	return c
}

// rank returns the tie-break rank for a handler; unlisted handlers sort
// after listed ones by name.
func (r *Router) rank(name string) int {
	if i, ok := r.priority[name]; ok {
		return i
	}
	return len(r.priority) + sort.SearchStrings(r.names, name)
}

func hasSlotWithPrefix(session *models.Session, prefix string) bool {
	for k := range session.Slots {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[tok] = true
	}
	return tokens
}
