package models

import "testing"

func TestInvocationStatusNeverRegresses(t *testing.T) {
	terminal := []InvocationStatus{InvocationSucceeded, InvocationFailed, InvocationTimedOut}

	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
		for _, next := range []InvocationStatus{InvocationPending, InvocationRunning, InvocationSucceeded} {
			if s.CanTransition(next) {
				t.Fatalf("terminal %s must not transition to %s", s, next)
			}
		}
	}

	if InvocationRunning.CanTransition(InvocationPending) {
		t.Fatal("running must not regress to pending")
	}
	if !InvocationPending.CanTransition(InvocationRunning) {
		t.Fatal("pending → running must be legal")
	}
	for _, s := range terminal {
		if !InvocationRunning.CanTransition(s) {
			t.Fatalf("running → %s must be legal", s)
		}
	}
	// Skipping RUNNING is allowed for invocations settled without dispatch.
	if !InvocationPending.CanTransition(InvocationFailed) {
		t.Fatal("pending → failed must be legal")
	}
}

func TestTurnFailedTools(t *testing.T) {
	turn := &Turn{Invocations: []ToolInvocation{
		{Tool: "a", Status: InvocationSucceeded},
		{Tool: "b", Status: InvocationFailed},
		{Tool: "c", Status: InvocationTimedOut},
	}}
	failed := turn.FailedTools()
	if len(failed) != 2 || failed[0] != "b" || failed[1] != "c" {
		t.Fatalf("failed = %v", failed)
	}
}

func TestSessionNextIndex(t *testing.T) {
	s := &Session{}
	if s.NextIndex() != 0 {
		t.Fatalf("empty session next index = %d", s.NextIndex())
	}
	s.Turns = append(s.Turns, Turn{Index: 0}, Turn{Index: 1})
	if s.NextIndex() != 2 {
		t.Fatalf("next index = %d, want 2", s.NextIndex())
	}
}

func TestTurnContextInvocationLookup(t *testing.T) {
	tc := &TurnContext{Invocations: []ToolInvocation{
		{Tool: "a", Status: InvocationFailed},
		{Tool: "a", Status: InvocationSucceeded},
	}}
	// Most recent batch wins.
	if inv := tc.Invocation("a"); inv == nil || inv.Status != InvocationSucceeded {
		t.Fatalf("lookup returned %+v", inv)
	}
	if tc.Invocation("b") != nil {
		t.Fatal("unknown tool should return nil")
	}
	if tc.ToolFailed("a") {
		t.Fatal("latest invocation succeeded; ToolFailed should be false")
	}
}
