package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/env"
)

var ErrCredentialsMissing = errors.New("gateway credentials are not configured")

var validate = validator.New()

// Credentials is the per-request {academy, gateway} credential context.
type Credentials struct {
	AcademyID     uint
	Gateway       string `validate:"required,oneof=easykash paymob tap"`
	APIKey        string `validate:"required_unless=Gateway tap"`
	SecretKey     string `validate:"required_unless=Gateway easykash"`
	PublicKey     string
	HMACSecret    string `validate:"required_unless=Gateway tap"`
	IntegrationID string `validate:"required_if=Gateway paymob"`
	BaseURL       string `validate:"omitempty,url"`
}

func (c Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCredentialsMissing, c.Gateway, err)
	}
	return nil
}

// WebhookSecret is the key a gateway signs its notifications with.
func (c Credentials) WebhookSecret() string {
	switch c.Gateway {
	case models.GatewayTap:
		return c.SecretKey
	default:
		return c.HMACSecret
	}
}

// Source resolves credentials for an academy.
type Source interface {
	Resolve(ctx context.Context, academyID uint, gateway string) (Credentials, error)
}

// CredentialResolver prefers an academy's own merchant account and falls back
// to the platform account configured in the environment.
type CredentialResolver struct {
	db       *gorm.DB
	defaults map[string]Credentials
}

func NewCredentialResolver(db *gorm.DB, defaults map[string]Credentials) *CredentialResolver {
	if defaults == nil {
		defaults = map[string]Credentials{}
	}
	return &CredentialResolver{db: db, defaults: defaults}
}

func (r *CredentialResolver) Resolve(ctx context.Context, academyID uint, gateway string) (Credentials, error) {
	gw := strings.ToLower(strings.TrimSpace(gateway))
	if !IsSupported(gw) {
		return Credentials{}, fmt.Errorf("%w: %q", ErrUnsupportedGateway, gateway)
	}

	if academyID != 0 && r.db != nil {
		var setting models.AcademyGatewaySetting
		err := r.db.WithContext(ctx).
			Where("academy_id = ? AND gateway = ? AND is_active = ?", academyID, gw, true).
			First(&setting).Error
		switch {
		case err == nil:
			creds := Credentials{
				AcademyID:     academyID,
				Gateway:       gw,
				APIKey:        strings.TrimSpace(setting.APIKey),
				SecretKey:     strings.TrimSpace(setting.SecretKey),
				PublicKey:     strings.TrimSpace(setting.PublicKey),
				HMACSecret:    strings.TrimSpace(setting.HMACSecret),
				IntegrationID: strings.TrimSpace(setting.IntegrationID),
				BaseURL:       strings.TrimSpace(setting.BaseURL),
			}
			return creds, creds.Validate()
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return Credentials{}, fmt.Errorf("load gateway settings: %w", err)
		}
	}

	creds, ok := r.defaults[gw]
	if !ok {
		return Credentials{}, fmt.Errorf("%w: %s", ErrCredentialsMissing, gw)
	}
	creds.AcademyID = academyID
	creds.Gateway = gw
	return creds, creds.Validate()
}

// DefaultsFromEnv loads the platform merchant accounts.
func DefaultsFromEnv() map[string]Credentials {
	return map[string]Credentials{
		models.GatewayEasyKash: {
			Gateway:    models.GatewayEasyKash,
			APIKey:     env.GetEnv("EASYKASH_API_KEY", ""),
			HMACSecret: env.GetEnv("EASYKASH_HMAC_SECRET", ""),
			BaseURL:    env.GetEnv("EASYKASH_BASE_URL", ""),
		},
		models.GatewayPaymob: {
			Gateway:       models.GatewayPaymob,
			APIKey:        env.GetEnv("PAYMOB_API_KEY", ""),
			SecretKey:     env.GetEnv("PAYMOB_SECRET_KEY", ""),
			PublicKey:     env.GetEnv("PAYMOB_PUBLIC_KEY", ""),
			HMACSecret:    env.GetEnv("PAYMOB_HMAC_SECRET", ""),
			IntegrationID: env.GetEnv("PAYMOB_INTEGRATION_ID", ""),
			BaseURL:       env.GetEnv("PAYMOB_BASE_URL", ""),
		},
		models.GatewayTap: {
			Gateway:   models.GatewayTap,
			SecretKey: env.GetEnv("TAP_SECRET_KEY", ""),
			PublicKey: env.GetEnv("TAP_PUBLIC_KEY", ""),
			BaseURL:   env.GetEnv("TAP_BASE_URL", ""),
		},
	}
}
