package payments

import (
	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/webhook"
)

var allowedTransitions = map[string]map[string]struct{}{
	models.PaymentStatusPending: {
		models.PaymentStatusProcessing: {},
		models.PaymentStatusCompleted:  {},
		models.PaymentStatusFailed:     {},
		models.PaymentStatusCancelled:  {},
	},
	models.PaymentStatusProcessing: {
		models.PaymentStatusCompleted: {},
		models.PaymentStatusFailed:    {},
	},
	models.PaymentStatusCompleted: {
		models.PaymentStatusRefunded: {},
	},
}

// CanTransition reports whether a payment may move from one status to
// another. A self-loop is not a transition and returns false; callers treat
// it as "already there".
func CanTransition(from, to string) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// TargetStatus maps a normalized webhook status onto a payment status.
func TargetStatus(normalized string) (string, bool) {
	switch normalized {
	case webhook.StatusSucceeded:
		return models.PaymentStatusCompleted, true
	case webhook.StatusFailed:
		return models.PaymentStatusFailed, true
	case webhook.StatusPending:
		return models.PaymentStatusProcessing, true
	case webhook.StatusRefunded:
		return models.PaymentStatusRefunded, true
	default:
		return "", false
	}
}
