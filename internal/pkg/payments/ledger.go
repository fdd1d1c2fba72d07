package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

const (
	DefaultLeaseDuration = 2 * time.Minute

	seenKeyPrefix = "webhook:seen:"
	seenKeyTTL    = 7 * 24 * time.Hour
)

// ReserveInput describes the notification being reserved on the ledger.
type ReserveInput struct {
	Gateway        string
	EventType      string
	IdempotencyKey string
	Payload        datatypes.JSON
	PaymentID      *uint
	AcademyID      *uint
}

// Ledger is the idempotency ledger over webhook_events. The unique index on
// idempotency_key is the only source of truth; Redis only remembers keys that
// have already settled.
type Ledger struct {
	db    *gorm.DB
	cache *redis.Client
	lease time.Duration
	now   func() time.Time
}

func NewLedger(db *gorm.DB, cache *redis.Client, lease time.Duration) *Ledger {
	if lease <= 0 {
		lease = DefaultLeaseDuration
	}
	return &Ledger{
		db:    db,
		cache: cache,
		lease: lease,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a ledger bound to tx. It never writes to the cache; the
// caller calls Remember once the transaction has committed.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	cp := *l
	cp.db = tx
	cp.cache = nil
	return &cp
}

// Exists reports whether key was already settled or is held by an in-flight
// request whose lease has not expired.
func (l *Ledger) Exists(ctx context.Context, key string) (bool, error) {
	if l.cache != nil {
		n, err := l.cache.Exists(ctx, seenKeyPrefix+key).Result()
		if err == nil && n > 0 {
			return true, nil
		}
	}

	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("idempotency_key = ?", key).
		Where("(status <> ? OR lease_expires_at > ?)", models.WebhookEventStatusReceived, l.now()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: ledger lookup: %v", ErrPersistence, err)
	}
	return count > 0, nil
}

// Reserve inserts a received row for the key. When the key is already taken
// the insert fails on the unique index and ErrDuplicateEvent is returned,
// unless the existing row is an abandoned reservation whose lease expired, in
// which case exactly one caller reclaims it.
func (l *Ledger) Reserve(ctx context.Context, in ReserveInput) (*models.WebhookEvent, error) {
	now := l.now()
	lease := now.Add(l.lease)
	ev := &models.WebhookEvent{
		Gateway:        in.Gateway,
		EventType:      in.EventType,
		IdempotencyKey: in.IdempotencyKey,
		Payload:        in.Payload,
		PaymentID:      in.PaymentID,
		AcademyID:      in.AcademyID,
		Status:         models.WebhookEventStatusReceived,
		Attempts:       1,
		LeaseExpiresAt: &lease,
	}

	err := l.db.WithContext(ctx).Create(ev).Error
	if err == nil {
		return ev, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) && !l.keyTaken(ctx, in.IdempotencyKey) {
		return nil, fmt.Errorf("%w: reserve webhook event: %v", ErrPersistence, err)
	}

	res := l.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("idempotency_key = ? AND status = ?", in.IdempotencyKey, models.WebhookEventStatusReceived).
		Where("(lease_expires_at IS NULL OR lease_expires_at <= ?)", now).
		Updates(map[string]interface{}{
			"lease_expires_at": lease,
			"attempts":         gorm.Expr("attempts + 1"),
			"payload":          in.Payload,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("%w: reclaim webhook event: %v", ErrPersistence, res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, ErrDuplicateEvent
	}

	var reclaimed models.WebhookEvent
	if err := l.db.WithContext(ctx).Where("idempotency_key = ?", in.IdempotencyKey).First(&reclaimed).Error; err != nil {
		return nil, fmt.Errorf("%w: reload webhook event: %v", ErrPersistence, err)
	}
	return &reclaimed, nil
}

func (l *Ledger) keyTaken(ctx context.Context, key string) bool {
	var count int64
	if err := l.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("idempotency_key = ?", key).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// MarkProcessed settles the event as handled, including accepted no-ops.
func (l *Ledger) MarkProcessed(ctx context.Context, ev *models.WebhookEvent) error {
	now := l.now()
	updates := map[string]interface{}{
		"status":           models.WebhookEventStatusProcessed,
		"error_message":    "",
		"processed_at":     now,
		"lease_expires_at": nil,
	}
	if ev.PaymentID != nil {
		updates["payment_id"] = *ev.PaymentID
	}
	if err := l.db.WithContext(ctx).Model(ev).Updates(updates).Error; err != nil {
		return fmt.Errorf("%w: mark webhook processed: %v", ErrPersistence, err)
	}
	ev.Status = models.WebhookEventStatusProcessed
	ev.ProcessedAt = &now
	ev.LeaseExpiresAt = nil
	l.Remember(ctx, ev.IdempotencyKey)
	return nil
}

// MarkFailed settles the event as rejected with reason.
func (l *Ledger) MarkFailed(ctx context.Context, ev *models.WebhookEvent, reason string) error {
	now := l.now()
	updates := map[string]interface{}{
		"status":           models.WebhookEventStatusFailed,
		"error_message":    reason,
		"processed_at":     now,
		"lease_expires_at": nil,
	}
	if ev.PaymentID != nil {
		updates["payment_id"] = *ev.PaymentID
	}
	if err := l.db.WithContext(ctx).Model(ev).Updates(updates).Error; err != nil {
		return fmt.Errorf("%w: mark webhook failed: %v", ErrPersistence, err)
	}
	ev.Status = models.WebhookEventStatusFailed
	ev.ErrorMessage = reason
	ev.ProcessedAt = &now
	ev.LeaseExpiresAt = nil
	l.Remember(ctx, ev.IdempotencyKey)
	return nil
}

// Release expires the lease of an unsettled event so the provider's next
// delivery can reclaim it.
func (l *Ledger) Release(ctx context.Context, ev *models.WebhookEvent) error {
	err := l.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND status = ?", ev.ID, models.WebhookEventStatusReceived).
		Update("lease_expires_at", l.now()).Error
	if err != nil {
		return fmt.Errorf("%w: release webhook event: %v", ErrPersistence, err)
	}
	return nil
}

// Remember records a settled key in the cache. Best effort.
func (l *Ledger) Remember(ctx context.Context, key string) {
	if l.cache == nil || key == "" {
		return
	}
	_ = l.cache.Set(ctx, seenKeyPrefix+key, 1, seenKeyTTL).Err()
}

// Find loads the ledger row for key.
func (l *Ledger) Find(ctx context.Context, key string) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	if err := l.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}
