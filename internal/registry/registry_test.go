package registry

import (
	"context"
	"testing"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

type fakeTool struct{ name string }

func (t *fakeTool) Name() string     { return t.name }
func (t *fakeTool) Idempotent() bool { return true }
func (t *fakeTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

type fakeHandler struct {
	name  string
	tools []string
}

func (h *fakeHandler) Name() string    { return h.name }
func (h *fakeHandler) Tools() []string { return h.tools }
func (h *fakeHandler) Decide(ctx context.Context, tc *models.TurnContext) (*models.Decision, error) {
	return &models.Decision{Output: "ok"}, nil
}

func TestToolLookup(t *testing.T) {
	r := New()
	r.RegisterTool(&fakeTool{name: "a.read"})

	if _, err := r.Tool("a.read"); err != nil {
		t.Fatalf("Tool(a.read): %v", err)
	}
	if _, err := r.Tool("a.write"); err == nil {
		t.Fatal("expected error for unregistered tool")
	}
}

func TestHandlerLookupAndOrder(t *testing.T) {
	r := New()
	r.RegisterHandler(&fakeHandler{name: "beta"})
	r.RegisterHandler(&fakeHandler{name: "alpha"})
	r.RegisterHandler(&fakeHandler{name: "beta"}) // replace, order kept

	if _, err := r.Handler("alpha"); err != nil {
		t.Fatalf("Handler(alpha): %v", err)
	}
	order := r.HandlerOrder()
	if len(order) != 2 || order[0] != "beta" || order[1] != "alpha" {
		t.Fatalf("order = %v", order)
	}
}

func TestAllowed(t *testing.T) {
	r := New()
	r.RegisterTool(&fakeTool{name: "a.read"})
	r.RegisterTool(&fakeTool{name: "b.write"})
	r.RegisterHandler(&fakeHandler{name: "h", tools: []string{"a.read"}})

	if !r.Allowed("h", "a.read") {
		t.Fatal("declared tool should be allowed")
	}
	if r.Allowed("h", "b.write") {
		t.Fatal("undeclared tool should be denied")
	}
	if r.Allowed("ghost", "a.read") {
		t.Fatal("unknown handler should be denied")
	}
}

func TestToolNamesSorted(t *testing.T) {
	r := New()
	r.RegisterTool(&fakeTool{name: "b"})
	r.RegisterTool(&fakeTool{name: "a"})

	names := r.ToolNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names = %v", names)
	}
}
