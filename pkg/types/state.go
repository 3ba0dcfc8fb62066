package types

import (
	"encoding/json"
	"strings"
)

// OrderState is the lifecycle state of a submitted order
type OrderState string

const (
	StateCreated         OrderState = "Created"
	StateSubmitted       OrderState = "Submitted"
	StatePartiallyFilled OrderState = "PartiallyFilled"
	StateExecuted        OrderState = "Executed"
	StateExpired         OrderState = "Expired"
	StateRefunded        OrderState = "Refunded"
	// StateFailed is local only: an unrecoverable error on this side.
	StateFailed OrderState = "Failed"
)

// relayerStates are the states a relayer may report. Failed is never one.
var relayerStates = []OrderState{
	StateCreated,
	StateSubmitted,
	StatePartiallyFilled,
	StateExecuted,
	StateExpired,
	StateRefunded,
}

var transitions = map[OrderState][]OrderState{
	StateCreated:         {StateSubmitted, StateFailed},
	StateSubmitted:       {StateSubmitted, StatePartiallyFilled, StateExecuted, StateExpired, StateRefunded, StateFailed},
	StatePartiallyFilled: {StatePartiallyFilled, StateExecuted, StateExpired, StateRefunded, StateFailed},
}

// ParseOrderState maps a relayer status onto a known state, ignoring case.
// Anything else, including the local Failed state, is returned verbatim and
// reported as unknown.
func ParseOrderState(s string) (OrderState, bool) {
	s = strings.TrimSpace(s)
	for _, state := range relayerStates {
		if strings.EqualFold(s, string(state)) {
			return state, true
		}
	}
	// relayers also report snake_case
	if strings.EqualFold(strings.ReplaceAll(s, "_", ""), string(StatePartiallyFilled)) {
		return StatePartiallyFilled, true
	}
	return OrderState(s), false
}

// UnmarshalJSON normalizes relayer states and keeps other values, such as
// Failed, verbatim.
func (s *OrderState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s, _ = ParseOrderState(raw)
	return nil
}

// Known reports whether s is a state a relayer may report.
func (s OrderState) Known() bool {
	_, ok := ParseOrderState(string(s))
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s OrderState) IsTerminal() bool {
	switch s {
	case StateExecuted, StateExpired, StateRefunded, StateFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the lifecycle allows moving from one state to another.
func CanTransition(from, to OrderState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Advances reports whether an observed state may replace the current one.
// Polling can miss intermediate states, so a terminal state is accepted from
// any non-terminal one and Created may jump straight to PartiallyFilled.
// Backwards moves are refused.
func Advances(from, to OrderState) bool {
	switch {
	case from == to || from.IsTerminal():
		return false
	case to.IsTerminal():
		return true
	case from == StateCreated && to == StatePartiallyFilled:
		return true
	default:
		return CanTransition(from, to)
	}
}
