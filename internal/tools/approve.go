package tools

import (
	"context"
	"strings"
)

// sensitiveActions require a human in the loop and are declined when the
// approver runs unattended.
var sensitiveActions = []string{"unlock", "disarm", "open garage"}

// HumanApprove gates sensitive actions on human sign-off. Without an
// attached frontend there is no human to ask, so the gate approves
// routine actions and declines ones marked sensitive. The decision is a
// result, not an error: a declined action is a valid outcome the handler
// composes into the reply.
type HumanApprove struct{}

// NewHumanApprove creates the human.approve tool.
func NewHumanApprove() *HumanApprove { return &HumanApprove{} }

func (t *HumanApprove) Name() string     { return "human.approve" }
func (t *HumanApprove) Idempotent() bool { return true }

// Invoke decides on an action. Args: action, detail (optional).
// Result: approved (bool), reason.
func (t *HumanApprove) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	action, err := stringArg(args, "action")
	if err != nil {
		return nil, err
	}

	for _, word := range sensitiveActions {
		if strings.Contains(strings.ToLower(action), word) {
			return map[string]any{
				"approved": false,
				"reason":   "action requires in-person confirmation",
			}, nil
		}
	}
	return map[string]any{"approved": true, "reason": "auto-approved"}, nil
}
