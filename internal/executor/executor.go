// Package executor implements the orchestration graph that drives one
// conversational turn.
//
// Each turn runs a small state machine:
//
//	ROUTED → EXECUTING → {AWAITING_TOOLS → EXECUTING}* → COMPLETED | FAILED
//
// On EXECUTING the selected handler's decide function is invoked with the
// turn-so-far. It either produces a final output (→ COMPLETED) or a batch
// of tool requests (→ AWAITING_TOOLS). Tool batches fan out concurrently
// under a per-turn concurrency bound and per-tool timeout, and fan-in
// waits for every call to settle before the handler is re-entered: no
// handler ever observes a partial batch mid-flight.
//
// Tool failures and timeouts are data, not errors: the handler is
// re-invoked with the settled statuses and chooses how to degrade. Only
// handler faults, nonconvergence past the cycle bound, and cancellation
// fail a turn, and even then the safety handler produces a user-visible
// reply; a turn is never silently dropped.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/majordomo-ai/majordomo/internal/config"
	"github.com/majordomo-ai/majordomo/internal/metrics"
	"github.com/majordomo-ai/majordomo/internal/registry"
	"github.com/majordomo-ai/majordomo/internal/router"
	"github.com/majordomo-ai/majordomo/internal/session"
	"github.com/majordomo-ai/majordomo/pkg/models"
)

var tracer = otel.Tracer("majordomo")

// safetyFallbackReply is the reply of last resort, used when even the
// safety handler cannot produce one.
const safetyFallbackReply = "I'm sorry — something went wrong handling that request. Please try again."

// Engine drives turns through the orchestration graph. Multiple turns may
// run concurrently, each with independent state; the only cross-turn
// coordination is the session store's serialized append.
type Engine struct {
	reg      *registry.Registry
	sessions session.Store
	router   *router.Router
	cfg      config.ExecutorConfig
}

// New creates an executor engine.
func New(reg *registry.Registry, sessions session.Store, r *router.Router, cfg config.ExecutorConfig) *Engine {
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = 3
	}
	if cfg.MaxToolConcurrency <= 0 {
		cfg.MaxToolConcurrency = 4
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 10 * time.Second
	}
	if cfg.SafetyHandler == "" {
		cfg.SafetyHandler = "safety"
	}
	return &Engine{reg: reg, sessions: sessions, router: r, cfg: cfg}
}

// RunTurn executes one full turn: route, execute the handler/tool cycle,
// and commit the turn to the session store. The returned turn carries its
// committed index. Cancelling ctx propagates to in-flight tool calls and
// fails the turn with reason "canceled".
func (e *Engine) RunTurn(ctx context.Context, sessionID, message string) (*models.Turn, *models.Session, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	start := time.Now()

	ctx, span := tracer.Start(ctx, "turn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	// Immutable snapshot for the whole turn: routing and handler logic
	// never observe state written during this turn's own processing.
	snapshot, err := e.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot session: %w", err)
	}

	decision := e.router.Route(message, snapshot)
	span.SetAttributes(
		attribute.String("route.handler", decision.Handler),
		attribute.Float64("route.confidence", decision.Confidence),
	)
	if decision.Ambiguous() {
		metrics.AmbiguousRoutesTotal.Inc()
	}

	turn := &models.Turn{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Input:     message,
		Route:     decision,
		CreatedAt: time.Now().UTC(),
	}

	slotUpdates := e.execute(ctx, turn, snapshot)

	// The turn is terminal at this point. Commit must complete even when
	// the caller has gone away, or a canceled turn and its safety reply
	// would be dropped on stores that honor ctx.
	committed, err := e.sessions.Append(context.WithoutCancel(ctx), sessionID, turn, slotUpdates)
	if err != nil {
		return nil, nil, fmt.Errorf("commit turn: %w", err)
	}

	metrics.TurnsTotal.WithLabelValues(turn.Route.Handler, string(turn.Status)).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())

	log.Info().
		Str("session_id", sessionID).
		Int("turn", turn.Index).
		Str("handler", decision.Handler).
		Str("status", string(turn.Status)).
		Int("cycles", turn.Cycles).
		Int("invocations", len(turn.Invocations)).
		Dur("duration", time.Since(start)).
		Msg("turn committed")

	return turn, committed, nil
}

// execute runs the EXECUTING ↔ AWAITING_TOOLS cycle and leaves the turn
// in a terminal state. It returns the slot updates to merge on commit;
// FAILED turns commit no slot updates, only the turn record itself.
func (e *Engine) execute(ctx context.Context, turn *models.Turn, snapshot *models.Session) map[string]any {
	handler, err := e.reg.Handler(turn.Route.Handler)
	if err != nil {
		e.failTurn(ctx, turn, snapshot, models.ReasonHandlerFault)
		return nil
	}

	for {
		if ctx.Err() != nil {
			e.failTurn(ctx, turn, snapshot, models.ReasonCanceled)
			return nil
		}

		tc := e.turnContext(turn, snapshot)
		decision, err := decide(ctx, handler, tc)
		if err != nil {
			log.Warn().
				Str("handler", handler.Name()).
				Str("turn_id", turn.ID).
				Err(err).
				Msg("handler fault")
			e.failTurn(ctx, turn, snapshot, models.ReasonHandlerFault)
			return nil
		}

		if decision.Final() {
			turn.Status = models.TurnCompleted
			turn.Output = decision.Output
			return decision.SlotUpdates
		}

		if turn.Cycles >= e.cfg.MaxCycles {
			log.Warn().
				Str("handler", handler.Name()).
				Str("turn_id", turn.ID).
				Int("max_cycles", e.cfg.MaxCycles).
				Msg("cycle bound exceeded")
			e.failTurn(ctx, turn, snapshot, models.ReasonNonconvergence)
			return nil
		}

		// AWAITING_TOOLS: fan out and wait for every call to settle.
		e.runBatch(ctx, turn, handler.Name(), decision.Requests)
		turn.Cycles++

		if ctx.Err() != nil {
			e.failTurn(ctx, turn, snapshot, models.ReasonCanceled)
			return nil
		}
	}
}

// decide invokes the handler's decision function, converting panics into
// handler faults so a misbehaving handler cannot take the turn down
// without a reply.
func decide(ctx context.Context, h registry.Handler, tc *models.TurnContext) (d *models.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()
	d, err = h.Decide(ctx, tc)
	if err == nil && d == nil {
		err = errors.New("handler returned nil decision")
	}
	return d, err
}

// turnContext assembles the turn-so-far a handler sees. Invocations are
// copied so handlers cannot mutate the turn record.
func (e *Engine) turnContext(turn *models.Turn, snapshot *models.Session) *models.TurnContext {
	invs := make([]models.ToolInvocation, len(turn.Invocations))
	copy(invs, turn.Invocations)
	return &models.TurnContext{
		Message:     turn.Input,
		Session:     snapshot,
		Route:       turn.Route,
		Invocations: invs,
		Failed:      turn.FailedTools(),
		Cycle:       turn.Cycles,
	}
}

// runBatch fans out one batch of tool requests with bounded concurrency
// and a per-tool timeout, then waits for all of them to settle (the
// all-or-settled barrier). Results are matched back by invocation id and
// recorded in request order, never completion order.
func (e *Engine) runBatch(ctx context.Context, turn *models.Turn, handlerName string, requests []models.ToolRequest) {
	base := len(turn.Invocations)
	invs := make([]models.ToolInvocation, len(requests))

	sem := semaphore.NewWeighted(int64(e.cfg.MaxToolConcurrency))
	done := make(chan int, len(requests))
	inflight := 0
	ordinals := make(map[string]int)

	for i, req := range requests {
		inv := models.ToolInvocation{
			ID:     uuid.New().String(),
			Index:  base + i,
			Tool:   req.Tool,
			Args:   req.Args,
			Status: models.InvocationPending,
		}

		tool, err := e.reg.Tool(req.Tool)
		switch {
		case err != nil:
			e.settle(&inv, models.InvocationFailed, nil, err)
		case !e.reg.Allowed(handlerName, req.Tool):
			e.settle(&inv, models.InvocationFailed, nil,
				fmt.Errorf("tool %q not allowed for handler %q", req.Tool, handlerName))
		default:
			if !tool.Idempotent() {
				// The key identifies the request (tool + per-batch
				// ordinal), not the invocation, so a re-request in a
				// later cycle after a lost reply carries the original
				// attempt's key and the tool can dedupe it.
				ord := ordinals[req.Tool]
				ordinals[req.Tool] = ord + 1
				inv.IdempotencyKey = fmt.Sprintf("%s:%s:%d", turn.ID, req.Tool, ord)
				if inv.Args == nil {
					inv.Args = make(map[string]any, 1)
				}
				inv.Args["idempotency_key"] = inv.IdempotencyKey
			}
			invs[i] = inv
			inflight++
			go func(slot int, tool registry.Tool) {
				e.invoke(ctx, sem, &invs[slot], tool)
				done <- slot
			}(i, tool)
			continue
		}
		invs[i] = inv
	}

	// Fan-in barrier: every in-flight call settles before the handler
	// re-enters, including on cancellation.
	for ; inflight > 0; inflight-- {
		<-done
	}

	turn.Invocations = append(turn.Invocations, invs...)
}

// invoke runs a single tool call through its full status lifecycle.
func (e *Engine) invoke(ctx context.Context, sem *semaphore.Weighted, inv *models.ToolInvocation, tool registry.Tool) {
	if err := sem.Acquire(ctx, 1); err != nil {
		e.settle(inv, models.InvocationFailed, nil, fmt.Errorf("%s: %w", models.ReasonCanceled, err))
		return
	}
	defer sem.Release(1)

	invCtx, span := tracer.Start(ctx, "tool."+inv.Tool)
	defer span.End()

	now := time.Now().UTC()
	inv.StartedAt = &now
	e.transition(inv, models.InvocationRunning)

	toolCtx, cancel := context.WithTimeout(invCtx, e.cfg.ToolTimeout)
	defer cancel()

	result, err := tool.Invoke(toolCtx, inv.Args)

	switch {
	case err == nil:
		e.settle(inv, models.InvocationSucceeded, result, nil)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		e.settle(inv, models.InvocationTimedOut, nil, fmt.Errorf("tool %s timed out after %s", inv.Tool, e.cfg.ToolTimeout))
	case ctx.Err() != nil:
		e.settle(inv, models.InvocationFailed, nil, fmt.Errorf("%s: %w", models.ReasonCanceled, err))
	default:
		e.settle(inv, models.InvocationFailed, nil, err)
	}

	span.SetAttributes(
		attribute.String("tool.status", string(inv.Status)),
		attribute.String("invocation.id", inv.ID),
	)
}

// settle moves an invocation to a terminal status, recording the result
// or error and the end timestamp.
func (e *Engine) settle(inv *models.ToolInvocation, status models.InvocationStatus, result map[string]any, err error) {
	e.transition(inv, status)
	now := time.Now().UTC()
	inv.EndedAt = &now
	inv.Result = result
	if err != nil {
		inv.Error = err.Error()
	}
	metrics.ToolInvocationsTotal.WithLabelValues(inv.Tool, string(inv.Status)).Inc()
}

// transition enforces forward-only status movement. An illegal transition
// is a programming error; it is logged and dropped rather than applied.
func (e *Engine) transition(inv *models.ToolInvocation, to models.InvocationStatus) {
	if !inv.Status.CanTransition(to) {
		log.Error().
			Str("invocation_id", inv.ID).
			Str("from", string(inv.Status)).
			Str("to", string(to)).
			Msg("illegal invocation status transition dropped")
		return
	}
	inv.Status = to
}

// failTurn moves the turn to FAILED and asks the safety handler for a
// minimal user-visible reply. The turn is still committed and returned to
// the caller, never silently dropped.
func (e *Engine) failTurn(ctx context.Context, turn *models.Turn, snapshot *models.Session, reason string) {
	turn.Status = models.TurnFailed
	turn.FailReason = reason
	turn.Output = e.safetyReply(ctx, turn, snapshot)
}

// safetyReply produces the degraded reply for a FAILED turn. The safety
// handler never requests tools; if it misbehaves anyway, a fixed reply is
// used so the caller always receives something.
func (e *Engine) safetyReply(ctx context.Context, turn *models.Turn, snapshot *models.Session) string {
	h, err := e.reg.Handler(e.cfg.SafetyHandler)
	if err != nil {
		return safetyFallbackReply
	}
	// The safety handler must run even when the turn ctx is canceled.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	d, err := decide(ctx, h, e.turnContext(turn, snapshot))
	if err != nil || !d.Final() || d.Output == "" {
		return safetyFallbackReply
	}
	return d.Output
}
