// Package settlement drives a Payment's lifecycle from INITIAL to a terminal
// state. Three independent drivers advance state — the synchronous creation
// path, provider webhooks, and the reconciliation scheduler — all funneled
// through the same idempotent transition function so they converge on the
// same terminal state no matter the delivery order.
package settlement

import (
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/provider"
)

// Transition is the outcome of applying a provider disposition to a payment.
type Transition struct {
	From string
	To   string
	// Changed is false for idempotent no-ops: duplicate events, states that
	// map to pending, and any event against an already-terminal payment.
	Changed bool
	// AlreadyTerminal marks the specific no-op of an event arriving after
	// the payment resolved. Logged at low severity, never an error.
	AlreadyTerminal bool
}

// Apply computes the status transition for a provider disposition. It never
// mutates out of a terminal state: terminal states are sticky, so replays
// and races between webhooks and reconciliation are harmless.
func Apply(payment *model.Payment, disposition provider.Disposition) Transition {
	t := Transition{From: payment.Status, To: payment.Status}

	if payment.Terminal() {
		t.AlreadyTerminal = true
		return t
	}

	switch disposition {
	case provider.DispositionSucceeded:
		t.To = model.PaymentStatusSucceeded
		t.Changed = true
	case provider.DispositionFailed:
		t.To = model.PaymentStatusFailed
		t.Changed = true
	case provider.DispositionCancelled:
		t.To = model.PaymentStatusCancelled
		t.Changed = true
	case provider.DispositionPending:
		// Still in flight; nothing to record.
	}

	return t
}
