package reasoning

import (
	"context"

	"github.com/harukaze-ai/mihari/eventlog"
)

// Chain is the manual-lifecycle variant of Session, for call sites that
// cannot wrap their work in a Run scope. NewChain opens the session;
// Conclude records the final step and closes it in one call. A Chain that
// is never concluded emits no chain event, matching an abandoned Session.
type Chain struct {
	s *Session
}

// NewChain opens a reasoning chain for one agent task.
func NewChain(ctx context.Context, log *eventlog.Log, reporter Reporter, agentID, task string) *Chain {
	return &Chain{s: open(ctx, log, reporter, agentID, task)}
}

// ID returns the underlying session id.
func (c *Chain) ID() string { return c.s.ID() }

// Step records a thinking step. Returns the chain for chaining.
func (c *Chain) Step(content string, opts ...StepOption) *Chain {
	c.s.Think(content, opts...)
	return c
}

// Decide records a decision point. Returns the chain for chaining.
func (c *Chain) Decide(description string, options []string, chosen, reasoning string, opts ...StepOption) *Chain {
	c.s.Decide(description, options, chosen, reasoning, opts...)
	return c
}

// Conclude records the conclusion step and closes the chain: the
// consolidated chain event is emitted and the session summary reported.
func (c *Chain) Conclude(content string, opts ...StepOption) {
	c.s.Conclude(content, opts...)
	c.s.complete()
}

// Abandon closes the chain without a chain event, for error paths.
func (c *Chain) Abandon(reason string) {
	c.s.abandon(reason)
}
