package ledger

import (
	"merx/internal/core/apperror"
)

// transitions is the allowed status change table for exits.
// pending <-> confirmed is label-only; entering or leaving cancelled
// carries a lot restoration or re-deduction side effect.
var transitions = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusPending: true, StatusCancelled: true},
	StatusCancelled: {StatusPending: true, StatusConfirmed: true},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// CheckTransition validates a status change request.
func CheckTransition(from, to Status) error {
	if from == to {
		return apperror.NewValidation("movement already has status " + string(to))
	}
	if !CanTransition(from, to) {
		return apperror.NewInvalidStatusTransition(string(from), string(to))
	}
	return nil
}

// StockEffect describes what a transition does to stock and lots.
type StockEffect int

const (
	// EffectNone: label-only change (pending <-> confirmed).
	EffectNone StockEffect = iota
	// EffectRestore: quantities go back to lots and stock (* -> cancelled).
	EffectRestore
	// EffectRededuct: quantities come out again (cancelled -> active).
	EffectRededuct
)

// TransitionEffect returns the stock side effect of a valid transition.
func TransitionEffect(from, to Status) StockEffect {
	switch {
	case to == StatusCancelled:
		return EffectRestore
	case from == StatusCancelled:
		return EffectRededuct
	default:
		return EffectNone
	}
}
