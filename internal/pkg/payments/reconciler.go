package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/webhook"
)

// WebhookRequest is one inbound gateway notification.
type WebhookRequest struct {
	Gateway  string
	Body     []byte
	Header   http.Header
	Query    url.Values
	RemoteIP string
}

// WebhookResult is what the endpoint answers with.
type WebhookResult struct {
	Response   Response
	HTTPStatus int
	PaymentID  uint
	Err        error
}

// HandleWebhook runs the reconciliation pipeline for one notification. Each
// step may short-circuit: IP allow list, signature, normalization,
// idempotency, payment lookup, tenant and amount checks, then the locked
// transition.
func (s *Service) HandleWebhook(ctx context.Context, req WebhookRequest) WebhookResult {
	gw := strings.ToLower(strings.TrimSpace(req.Gateway))
	paymentID, key, err := s.reconcile(ctx, gw, req)

	resp, code := Outcome(paymentID, err)
	outcome := outcomeLabel(err)
	s.metrics.webhook(gw, outcome)

	fields := []zap.Field{
		zap.String("gateway", gw),
		zap.String("idempotency_key", key),
		zap.Uint("payment_id", paymentID),
		zap.String("outcome", outcome),
		zap.Int("http_status", code),
	}
	switch {
	case code >= http.StatusInternalServerError:
		s.logger.Error("webhook failed", append(fields, zap.Error(err))...)
	case err != nil && resp.Status == ResponseError:
		s.logger.Warn("webhook rejected", append(fields, zap.Error(err))...)
	default:
		s.logger.Info("webhook handled", fields...)
	}

	return WebhookResult{Response: resp, HTTPStatus: code, PaymentID: paymentID, Err: err}
}

func (s *Service) reconcile(ctx context.Context, gw string, req WebhookRequest) (uint, string, error) {
	if !gateway.IsSupported(gw) {
		return 0, "", fmt.Errorf("%w: %q", gateway.ErrUnsupportedGateway, req.Gateway)
	}

	if !s.ipAllowed(gw, req.RemoteIP) {
		return 0, "", fmt.Errorf("%w: %s", ErrIPNotAllowed, req.RemoteIP)
	}

	// The tenant is read from the unverified body only to select the secret.
	claimedAcademy := webhook.PeekAcademyID(gw, req.Body)
	creds, err := s.credentials.Resolve(ctx, claimedAcademy, gw)
	if err != nil {
		if errors.Is(err, gateway.ErrCredentialsMissing) {
			return 0, "", fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		return 0, "", fmt.Errorf("%w: resolve credentials: %v", ErrPersistence, err)
	}
	signed := webhook.VerifySignature(webhook.Request{
		Gateway: gw,
		Body:    req.Body,
		Header:  req.Header,
		Query:   req.Query,
	}, creds.WebhookSecret())
	if !signed {
		return 0, "", ErrSignatureInvalid
	}

	payload, err := webhook.Normalize(gw, req.Body)
	if err != nil {
		return 0, "", err
	}
	key := payload.IdempotencyKey()

	seen, err := s.ledger.Exists(ctx, key)
	if err != nil {
		return 0, key, err
	}
	if seen {
		return 0, key, ErrDuplicateEvent
	}

	stored, err := webhook.Sanitize(req.Body)
	if err != nil {
		return 0, key, err
	}
	in := ReserveInput{
		Gateway:        gw,
		EventType:      payload.EventType,
		IdempotencyKey: key,
		Payload:        stored,
	}
	if payload.AcademyID != 0 {
		academyID := payload.AcademyID
		in.AcademyID = &academyID
	}
	event, err := s.ledger.Reserve(ctx, in)
	if err != nil {
		return 0, key, err
	}

	paymentID, err := s.settle(ctx, event, payload)
	switch {
	case err == nil, errors.Is(err, ErrInvalidStateTransition):
	case isBusinessRejection(err):
		if markErr := s.ledger.MarkFailed(ctx, event, err.Error()); markErr != nil {
			s.release(ctx, event)
			return paymentID, key, markErr
		}
	default:
		s.release(ctx, event)
	}
	return paymentID, key, err
}

// settle runs the lookup, tenant and amount checks and the transition for a
// reserved event.
func (s *Service) settle(ctx context.Context, event *models.WebhookEvent, payload *webhook.Payload) (uint, error) {
	p, err := s.locatePayment(ctx, lookup{
		Gateway:       payload.Gateway,
		PaymentID:     payload.PaymentID,
		TransactionID: payload.TransactionID,
		IntentID:      payload.IntentID,
		OrderID:       payload.OrderID,
		Accept: func(p *models.Payment) bool {
			return agreesWithSignedRefs(p, payload.SignedRefs())
		},
	})
	if err != nil {
		return 0, err
	}
	event.PaymentID = &p.ID

	if payload.AcademyID != 0 && payload.AcademyID != p.AcademyID {
		return p.ID, fmt.Errorf("%w: payload academy %d, payment academy %d", ErrTenantMismatch, payload.AcademyID, p.AcademyID)
	}
	if expected := p.AmountInMinorUnits(); payload.AmountInCents != expected {
		return p.ID, fmt.Errorf("%w: payload %d, payment %d", ErrAmountMismatch, payload.AmountInCents, expected)
	}
	if payload.Currency != "" && !strings.EqualFold(payload.Currency, p.Currency) {
		return p.ID, fmt.Errorf("%w: payload %s, payment %s", ErrCurrencyMismatch, payload.Currency, p.Currency)
	}

	target, ok := TargetStatus(payload.Status)
	if !ok {
		return p.ID, fmt.Errorf("%w: status %q", ErrMalformedPayload, payload.Status)
	}

	res, err := s.applyTransition(ctx, transition{
		PaymentID:     p.ID,
		Gateway:       payload.Gateway,
		Target:        target,
		TransactionID: payload.TransactionID,
		PaymentMethod: payload.PaymentMethod,
		CardBrand:     payload.CardBrand,
		CardLastFour:  payload.CardLastFour,
		PaidAt:        payload.ProcessedAt,
		Metadata:      payload.Metadata,
		Note:          fmt.Sprintf("%s %s", payload.Gateway, payload.EventType),
		Actor:         models.AuditActorWebhook,
		Event:         event,
	})
	if err != nil {
		return p.ID, err
	}
	if !res.Applied {
		return p.ID, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, res.From, target)
	}
	return p.ID, nil
}

// agreesWithSignedRefs reports whether a located payment matches at least one
// signed correlation id. A payment that already holds a different transaction
// never matches.
func agreesWithSignedRefs(p *models.Payment, refs webhook.Refs) bool {
	if held := p.TransactionRef(); held != "" && refs.TransactionID != "" && held != refs.TransactionID {
		return false
	}
	switch {
	case refs.TransactionID != "" && p.TransactionRef() == refs.TransactionID:
		return true
	case refs.OrderID != "" && p.GatewayOrderID == refs.OrderID:
		return true
	case refs.IntentID != "" && p.GatewayIntentID == refs.IntentID:
		return true
	}
	return false
}

func (s *Service) release(ctx context.Context, event *models.WebhookEvent) {
	if err := s.ledger.Release(ctx, event); err != nil {
		s.logger.Error("release webhook event", zap.Uint("event_id", event.ID), zap.Error(err))
	}
}
