package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

var ErrNoPayable = errors.New("payment has no payable")

// Payable is implemented by every purchase-domain entity a payment can pay for.
type Payable interface {
	ActivateFromPayment(tx *gorm.DB, p *models.Payment) error
	PaymentReturnPath() string
}

// PayableLoader loads the payable with the given id.
type PayableLoader func(db *gorm.DB, id uint) (Payable, error)

// PayableRegistry dispatches on payments.payable_type.
type PayableRegistry struct {
	loaders map[string]PayableLoader
}

func NewPayableRegistry() *PayableRegistry {
	return &PayableRegistry{loaders: map[string]PayableLoader{}}
}

// DefaultPayables knows subscriptions and course enrollments.
func DefaultPayables() *PayableRegistry {
	r := NewPayableRegistry()
	r.Register(models.PayableSubscription, func(db *gorm.DB, id uint) (Payable, error) {
		var s models.Subscription
		if err := db.First(&s, id).Error; err != nil {
			return nil, err
		}
		return &s, nil
	})
	r.Register(models.PayableCourseEnrollment, func(db *gorm.DB, id uint) (Payable, error) {
		var e models.CourseEnrollment
		if err := db.First(&e, id).Error; err != nil {
			return nil, err
		}
		return &e, nil
	})
	return r
}

func (r *PayableRegistry) Register(payableType string, loader PayableLoader) {
	r.loaders[payableType] = loader
}

func (r *PayableRegistry) Supports(payableType string) bool {
	_, ok := r.loaders[payableType]
	return ok
}

// Load resolves the payable of p. Payments without a type tag fall back to
// the legacy subscription_id column.
func (r *PayableRegistry) Load(db *gorm.DB, p *models.Payment) (Payable, error) {
	if p.PayableType != "" {
		loader, ok := r.loaders[p.PayableType]
		if !ok {
			return nil, fmt.Errorf("%w: unknown payable type %q", ErrNoPayable, p.PayableType)
		}
		if p.PayableID == 0 {
			return nil, ErrNoPayable
		}
		return loader(db, p.PayableID)
	}
	if p.SubscriptionID != nil && *p.SubscriptionID != 0 {
		if loader, ok := r.loaders[models.PayableSubscription]; ok {
			return loader(db, *p.SubscriptionID)
		}
	}
	return nil, ErrNoPayable
}

// PaymentSummary is what the success notification is rendered from.
type PaymentSummary struct {
	PaymentID     uint
	AcademyID     uint
	Amount        decimal.Decimal
	Currency      string
	Gateway       string
	TransactionID string
	PaymentMethod string
	CardBrand     string
	CardLastFour  string
	PaidAt        time.Time
	Locale        string
}

// InvoiceMetadata describes a generated invoice document.
type InvoiceMetadata struct {
	Number      string
	Location    string
	GeneratedAt time.Time
}

type Notifier interface {
	SendPaymentSuccessNotification(ctx context.Context, user *models.User, summary PaymentSummary) error
}

type InvoiceGenerator interface {
	GenerateInvoiceWithPdf(ctx context.Context, p *models.Payment) (*InvoiceMetadata, error)
}

// Dispatcher runs post-payment activation. Activate runs inside the payment
// transaction; AfterCommit runs the best-effort side effects once it has
// committed.
type Dispatcher struct {
	db       *gorm.DB
	payables *PayableRegistry
	notifier Notifier
	invoices InvoiceGenerator
	metrics  *Metrics
	logger   *zap.Logger
}

func NewDispatcher(db *gorm.DB, payables *PayableRegistry, notifier Notifier, invoices InvoiceGenerator, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	if payables == nil {
		payables = DefaultPayables()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		db:       db,
		payables: payables,
		notifier: notifier,
		invoices: invoices,
		metrics:  metrics,
		logger:   logger,
	}
}

// Activate marks the payable active and paid. A payment without a payable
// is logged and skipped; any other error rolls back the transaction.
func (d *Dispatcher) Activate(tx *gorm.DB, p *models.Payment) error {
	payable, err := d.payables.Load(tx, p)
	switch {
	case errors.Is(err, ErrNoPayable), errors.Is(err, gorm.ErrRecordNotFound):
		d.logger.Warn("payment completed without an activatable payable",
			zap.Uint("payment_id", p.ID),
			zap.String("payable_type", p.PayableType),
			zap.Uint("payable_id", p.PayableID),
			zap.Error(err))
		return nil
	case err != nil:
		return fmt.Errorf("%w: load payable: %v", ErrPersistence, err)
	}

	if err := payable.ActivateFromPayment(tx, p); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// AfterCommit sends the success notification and generates the invoice.
// Failures are logged and counted, never returned.
func (d *Dispatcher) AfterCommit(ctx context.Context, p *models.Payment) {
	d.notify(ctx, p)
	d.invoice(ctx, p)
}

func (d *Dispatcher) notify(ctx context.Context, p *models.Payment) {
	if d.notifier == nil {
		return
	}
	defer d.recoverSideEffect("notification", p)

	var user models.User
	if err := d.db.WithContext(ctx).First(&user, p.UserID).Error; err != nil {
		d.sideEffectFailed("notification", p, err)
		return
	}
	locale := ""
	var academy models.Academy
	if err := d.db.WithContext(ctx).Select("locale").First(&academy, p.AcademyID).Error; err == nil {
		locale = academy.Locale
	}
	if err := d.notifier.SendPaymentSuccessNotification(ctx, &user, summarize(p, locale)); err != nil {
		d.sideEffectFailed("notification", p, err)
	}
}

func (d *Dispatcher) invoice(ctx context.Context, p *models.Payment) {
	if d.invoices == nil {
		return
	}
	defer d.recoverSideEffect("invoice", p)

	meta, err := d.invoices.GenerateInvoiceWithPdf(ctx, p)
	if err != nil {
		d.sideEffectFailed("invoice", p, err)
		return
	}
	d.logger.Info("invoice generated",
		zap.Uint("payment_id", p.ID),
		zap.String("invoice_number", meta.Number),
		zap.String("location", meta.Location))
}

func (d *Dispatcher) sideEffectFailed(kind string, p *models.Payment, err error) {
	d.metrics.sideEffect(kind)
	d.logger.Error("post-payment side effect failed",
		zap.String("kind", kind),
		zap.Uint("payment_id", p.ID),
		zap.Error(err))
}

func (d *Dispatcher) recoverSideEffect(kind string, p *models.Payment) {
	if r := recover(); r != nil {
		d.sideEffectFailed(kind, p, fmt.Errorf("panic: %v", r))
	}
}

func summarize(p *models.Payment, locale string) PaymentSummary {
	s := PaymentSummary{
		PaymentID:     p.ID,
		AcademyID:     p.AcademyID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Gateway:       p.Gateway,
		TransactionID: p.TransactionRef(),
		PaymentMethod: p.PaymentMethod,
		CardBrand:     p.CardBrand,
		CardLastFour:  p.CardLastFour,
		Locale:        locale,
	}
	if p.PaidAt != nil {
		s.PaidAt = *p.PaidAt
	}
	return s
}
