package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/fatih/color"

	"fusion-swap/pkg/events"
	"fusion-swap/pkg/types"
)

// consolePublisher prints lifecycle events as they happen.
type consolePublisher struct {
	mu sync.Mutex
}

func (p *consolePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := e.Time.Local().Format("15:04:05")
	switch e.Kind {
	case events.KindSubmitted:
		color.Green("[%s] ✓ Order submitted: %s", ts, e.OrderHash)
	case events.KindStateChanged:
		fmt.Printf("[%s] Status: %s → %s\n", ts, coloredState(e.Previous), coloredState(e.State))
	case events.KindSecretRevealed:
		if e.Idx != nil {
			color.Cyan("[%s] Secret %d revealed to resolvers", ts, *e.Idx)
		}
	case events.KindRevealFailed:
		if e.Idx != nil {
			color.Red("[%s] Failed to reveal secret %d: %s (will retry)", ts, *e.Idx, e.Message)
		}
	case events.KindTerminal:
		fmt.Printf("[%s] Order finished: %s\n", ts, coloredState(e.State))
	}
	return nil
}

func (p *consolePublisher) Close() error { return nil }

func coloredState(state types.OrderState) string {
	switch state {
	case types.StateExecuted:
		return color.GreenString(string(state))
	case types.StateCreated, types.StateSubmitted, types.StatePartiallyFilled:
		return color.YellowString(string(state))
	case types.StateExpired, types.StateRefunded, types.StateFailed:
		return color.RedString(string(state))
	default:
		return string(state)
	}
}
