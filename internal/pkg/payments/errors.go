package payments

import (
	"errors"
	"net/http"

	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/webhook"
)

var (
	ErrSignatureInvalid       = errors.New("signature invalid")
	ErrDuplicateEvent         = errors.New("duplicate event")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrTenantMismatch         = errors.New("tenant mismatch")
	ErrAmountMismatch         = errors.New("amount mismatch")
	ErrCurrencyMismatch       = errors.New("currency mismatch")
	ErrTransactionConflict    = errors.New("transaction conflict")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrGatewayVerification    = errors.New("gateway verification failed")
	ErrPersistence            = errors.New("persistence error")
	ErrUnexpected             = errors.New("unexpected error")
	ErrIPNotAllowed           = errors.New("ip not allowed")
	ErrMalformedPayload       = webhook.ErrMalformedPayload
	ErrValidation             = errors.New("validation error")
)

// Response statuses returned to gateways.
const (
	ResponseSuccess = "success"
	ResponseIgnored = "ignored"
	ResponseError   = "error"
)

// Response is the JSON body every webhook endpoint answers with.
type Response struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	PaymentID uint   `json:"paymentId,omitempty"`
}

// Outcome formats the result of one webhook into the body and HTTP status
// sent back to the gateway. Soft outcomes (duplicates, stale transitions)
// answer 200 so the provider stops retrying; infrastructure errors answer 500
// so it retries.
func Outcome(paymentID uint, err error) (Response, int) {
	switch {
	case err == nil:
		return Response{Status: ResponseSuccess, Message: "Webhook processed", PaymentID: paymentID}, http.StatusOK
	case errors.Is(err, ErrDuplicateEvent):
		return Response{Status: ResponseIgnored, Message: "Duplicate event"}, http.StatusOK
	case errors.Is(err, ErrInvalidStateTransition):
		return Response{Status: ResponseIgnored, Message: "Transition not applicable", PaymentID: paymentID}, http.StatusOK
	case errors.Is(err, ErrIPNotAllowed):
		return Response{Status: ResponseError, Message: "Forbidden"}, http.StatusForbidden
	case errors.Is(err, ErrSignatureInvalid):
		return Response{Status: ResponseError, Message: "Invalid signature"}, http.StatusBadRequest
	case errors.Is(err, ErrMalformedPayload), errors.Is(err, gateway.ErrUnsupportedGateway), errors.Is(err, webhook.ErrUnsupportedGateway):
		return Response{Status: ResponseError, Message: "Malformed payload"}, http.StatusBadRequest
	case errors.Is(err, ErrPaymentNotFound):
		return Response{Status: ResponseError, Message: "Payment not found"}, http.StatusBadRequest
	case errors.Is(err, ErrTenantMismatch):
		return Response{Status: ResponseError, Message: "Tenant mismatch"}, http.StatusBadRequest
	case errors.Is(err, ErrAmountMismatch):
		return Response{Status: ResponseError, Message: "Amount mismatch"}, http.StatusBadRequest
	case errors.Is(err, ErrCurrencyMismatch):
		return Response{Status: ResponseError, Message: "Currency mismatch"}, http.StatusBadRequest
	case errors.Is(err, ErrTransactionConflict):
		return Response{Status: ResponseError, Message: "Transaction conflict"}, http.StatusBadRequest
	default:
		return Response{Status: ResponseError, Message: "Internal error"}, http.StatusInternalServerError
	}
}

// outcomeLabel is the metrics label for an error.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrDuplicateEvent):
		return "duplicate"
	case errors.Is(err, ErrInvalidStateTransition):
		return "ignored_transition"
	case errors.Is(err, ErrIPNotAllowed):
		return "ip_not_allowed"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrMalformedPayload), errors.Is(err, gateway.ErrUnsupportedGateway), errors.Is(err, webhook.ErrUnsupportedGateway):
		return "malformed"
	case errors.Is(err, ErrPaymentNotFound):
		return "not_found"
	case errors.Is(err, ErrTenantMismatch):
		return "tenant_mismatch"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrCurrencyMismatch):
		return "currency_mismatch"
	case errors.Is(err, ErrTransactionConflict):
		return "transaction_conflict"
	case errors.Is(err, ErrGatewayVerification):
		return "verification_failed"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "unexpected"
	}
}

// isBusinessRejection reports errors that are recorded on the ledger as failed
// instead of being retried.
func isBusinessRejection(err error) bool {
	return errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrTenantMismatch) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrTransactionConflict)
}
