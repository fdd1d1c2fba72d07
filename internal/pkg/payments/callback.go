package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/i18n"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/webhook"
)

// Flash kinds attached to the callback redirect.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashError   = "error"
)

// CallbackRequest is a browser returning from a hosted checkout.
type CallbackRequest struct {
	Gateway string
	Query   url.Values
}

// CallbackResult tells the handler where to redirect and what to flash.
type CallbackResult struct {
	RedirectURL string
	FlashKind   string
	MessageKey  string
	Message     string
	Locale      string
	PaymentID   uint
	Err         error
}

// HandleCallback verifies the payment with the gateway, server to server,
// and applies the same locked transition the webhook path uses. It never
// fails: every outcome is a redirect with a localized message.
func (s *Service) HandleCallback(ctx context.Context, req CallbackRequest) CallbackResult {
	gw := strings.ToLower(strings.TrimSpace(req.Gateway))
	res := s.callback(ctx, gw, req.Query)

	res.Locale = i18n.Normalize(res.Locale)
	res.Message = i18n.T(res.Locale, res.MessageKey)

	outcome := outcomeLabel(res.Err)
	if res.Err == nil {
		outcome = res.MessageKey
	}
	s.metrics.callback(gw, outcome)

	fields := []zap.Field{
		zap.String("gateway", gw),
		zap.Uint("payment_id", res.PaymentID),
		zap.String("flash", res.FlashKind),
		zap.String("message_key", res.MessageKey),
		zap.String("redirect", res.RedirectURL),
	}
	if res.Err != nil {
		s.logger.Warn("payment callback not confirmed", append(fields, zap.Error(res.Err))...)
	} else {
		s.logger.Info("payment callback handled", fields...)
	}
	return res
}

func (s *Service) callback(ctx context.Context, gw string, q url.Values) CallbackResult {
	fail := func(key string, err error) CallbackResult {
		return CallbackResult{RedirectURL: s.homeURL(), FlashKind: FlashError, MessageKey: key, Err: err}
	}

	params, err := webhook.ParseCallback(gw, q)
	if err != nil {
		return fail(i18n.PaymentInvalidCallback, err)
	}

	p, err := s.locatePayment(ctx, lookup{
		Gateway:       params.Gateway,
		PaymentID:     params.PaymentID,
		TransactionID: params.TransactionID,
		IntentID:      params.Reference,
		OrderID:       params.OrderID,
	})
	if err != nil {
		return fail(i18n.PaymentNotFound, err)
	}

	academy := s.loadAcademy(ctx, p.AcademyID)
	out := CallbackResult{PaymentID: p.ID}
	if academy != nil {
		out.Locale = academy.Locale
	}

	verification, err := s.verify(ctx, p, params)
	if err != nil {
		out.FlashKind, out.MessageKey, out.Err = FlashError, i18n.PaymentVerificationFailed, err
		out.RedirectURL = s.redirectTarget(ctx, p, academy)
		return out
	}

	req := transition{
		PaymentID:     p.ID,
		Gateway:       p.Gateway,
		TransactionID: verification.TransactionID,
		PaymentMethod: verification.PaymentMethod,
		CardBrand:     verification.CardBrand,
		CardLastFour:  verification.LastFour,
		Note:          fmt.Sprintf("%s redirect verified", p.Gateway),
		Actor:         models.AuditActorCallback,
	}

	switch {
	case verification.IsSuccessful:
		req.Target = models.PaymentStatusCompleted
	case verification.IsPending:
		req.Target = models.PaymentStatusProcessing
	default:
		req.Target = models.PaymentStatusFailed
		req.Metadata = map[string]string{"error_message": verification.ErrorMessage}
	}

	applied, err := s.applyTransition(ctx, req)
	if errors.Is(err, ErrTransactionConflict) {
		err = fmt.Errorf("%w: %w", ErrGatewayVerification, err)
	}
	if err != nil {
		out.FlashKind, out.MessageKey, out.Err = FlashError, i18n.PaymentVerificationFailed, err
		out.RedirectURL = s.redirectTarget(ctx, p, academy)
		return out
	}
	current := applied.Payment
	out.RedirectURL = s.redirectTarget(ctx, current, academy)

	switch {
	case current.Status == models.PaymentStatusCompleted && applied.Applied:
		out.FlashKind, out.MessageKey = FlashSuccess, i18n.PaymentSuccess
	case current.Status == models.PaymentStatusCompleted:
		out.FlashKind, out.MessageKey = FlashInfo, i18n.PaymentAlreadyCompleted
	case current.Status == models.PaymentStatusProcessing || current.Status == models.PaymentStatusPending:
		out.FlashKind, out.MessageKey = FlashInfo, i18n.PaymentPending
	default:
		out.FlashKind, out.MessageKey = FlashError, i18n.PaymentFailed
	}
	return out
}

// verify asks the gateway what happened, bounded by the configured timeout
// and never retried. The result must name this payment's merchant reference
// or gateway order, and a reported amount or currency must match it exactly.
func (s *Service) verify(ctx context.Context, p *models.Payment, params *webhook.CallbackParams) (*gateway.VerificationResult, error) {
	creds, err := s.credentials.Resolve(ctx, p.AcademyID, p.Gateway)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayVerification, err)
	}
	adapter, err := s.adapters(creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayVerification, err)
	}

	id := params.VerificationID
	if p.Gateway == models.GatewayEasyKash && p.GatewayIntentID != "" {
		id = p.GatewayIntentID
	}

	vctx, cancel := context.WithTimeout(ctx, s.cfg.VerifyTimeout)
	defer cancel()
	res, err := adapter.VerifyPayment(vctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayVerification, err)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: empty verification result", ErrGatewayVerification)
	}
	if res.AmountInCents != 0 && res.AmountInCents != p.AmountInMinorUnits() {
		return nil, fmt.Errorf("%w: %w: gateway %d, payment %d",
			ErrGatewayVerification, ErrAmountMismatch, res.AmountInCents, p.AmountInMinorUnits())
	}
	if res.Currency != "" && !strings.EqualFold(res.Currency, p.Currency) {
		return nil, fmt.Errorf("%w: %w: gateway %s, payment %s",
			ErrGatewayVerification, ErrCurrencyMismatch, res.Currency, p.Currency)
	}
	if !boundTo(res, p) {
		return nil, fmt.Errorf("%w: result reference %q order %q does not belong to payment %d",
			ErrGatewayVerification, res.Reference, res.OrderID, p.ID)
	}
	if held := p.TransactionRef(); held != "" && res.TransactionID != "" && held != res.TransactionID {
		return nil, fmt.Errorf("%w: %w: payment holds %s, gateway reported %s",
			ErrGatewayVerification, ErrTransactionConflict, held, res.TransactionID)
	}
	return res, nil
}

func boundTo(res *gateway.VerificationResult, p *models.Payment) bool {
	if res.Reference != "" && res.Reference == p.GatewayIntentID {
		return true
	}
	return res.OrderID != "" && res.OrderID == p.GatewayOrderID
}
