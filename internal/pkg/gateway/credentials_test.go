package gateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
)

func platformDefaults() map[string]gateway.Credentials {
	return map[string]gateway.Credentials{
		models.GatewayPaymob: {
			Gateway:       models.GatewayPaymob,
			APIKey:        "platform-api",
			SecretKey:     "platform-secret",
			HMACSecret:    "platform-hmac",
			IntegrationID: "1",
		},
		models.GatewayTap: {Gateway: models.GatewayTap},
	}
}

func TestCredentialResolver_TenantRowWins(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, db.Create(&models.Academy{ID: 5, Name: "Noor", Subdomain: "noor"}).Error)
	require.NoError(t, db.Create(&models.AcademyGatewaySetting{
		AcademyID:     5,
		Gateway:       models.GatewayPaymob,
		APIKey:        "tenant-api",
		SecretKey:     "tenant-secret",
		HMACSecret:    "tenant-hmac",
		IntegrationID: "77",
		IsActive:      true,
	}).Error)

	r := gateway.NewCredentialResolver(db, platformDefaults())
	creds, err := r.Resolve(context.Background(), 5, "paymob")
	require.NoError(t, err)
	assert.Equal(t, uint(5), creds.AcademyID)
	assert.Equal(t, "tenant-hmac", creds.WebhookSecret())
	assert.Equal(t, "77", creds.IntegrationID)
}

func TestCredentialResolver_FallsBackToPlatform(t *testing.T) {
	db := dbtest.New(t)
	r := gateway.NewCredentialResolver(db, platformDefaults())

	creds, err := r.Resolve(context.Background(), 9, models.GatewayPaymob)
	require.NoError(t, err)
	assert.Equal(t, uint(9), creds.AcademyID)
	assert.Equal(t, "platform-hmac", creds.WebhookSecret())
}

func TestCredentialResolver_InactiveTenantRowIgnored(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, db.Create(&models.Academy{ID: 5, Name: "Noor", Subdomain: "noor"}).Error)
	setting := models.AcademyGatewaySetting{
		AcademyID:     5,
		Gateway:       models.GatewayPaymob,
		APIKey:        "tenant-api",
		SecretKey:     "tenant-secret",
		HMACSecret:    "tenant-hmac",
		IntegrationID: "77",
	}
	require.NoError(t, db.Create(&setting).Error)
	require.NoError(t, db.Model(&setting).Update("is_active", false).Error)

	r := gateway.NewCredentialResolver(db, platformDefaults())
	creds, err := r.Resolve(context.Background(), 5, models.GatewayPaymob)
	require.NoError(t, err)
	assert.Equal(t, "platform-hmac", creds.WebhookSecret())
}

func TestCredentialResolver_MissingSecrets(t *testing.T) {
	r := gateway.NewCredentialResolver(nil, platformDefaults())

	_, err := r.Resolve(context.Background(), 1, models.GatewayTap)
	assert.ErrorIs(t, err, gateway.ErrCredentialsMissing)

	_, err = r.Resolve(context.Background(), 1, models.GatewayEasyKash)
	assert.ErrorIs(t, err, gateway.ErrCredentialsMissing)

	_, err = r.Resolve(context.Background(), 1, "stripe")
	assert.ErrorIs(t, err, gateway.ErrUnsupportedGateway)
}
