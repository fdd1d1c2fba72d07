package invoice

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/AcademyPay/internal/pkg/env"
)

// Config holds the invoice archive settings
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
	// LocalDir receives the PDFs when S3 is disabled.
	LocalDir string
	Issuer   string
}

// LoadConfig loads invoice storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("INVOICE_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("INVOICE_S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("INVOICE_S3_REGION", "eu-central-1"),
		BucketName:      env.GetEnv("INVOICE_S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("INVOICE_S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("INVOICE_S3_ENABLED", "false") == "true",
		LocalDir:        env.GetEnv("INVOICE_LOCAL_DIR", "./storage/invoices"),
		Issuer:          env.GetEnv("INVOICE_ISSUER", "AcademyPay"),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("INVOICE_S3_ACCESS_KEY_ID is required when invoice S3 storage is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("INVOICE_S3_SECRET_ACCESS_KEY is required when invoice S3 storage is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("INVOICE_S3_BUCKET_NAME is required when invoice S3 storage is enabled")
		}
	}

	return config, nil
}

// ObjectKey is invoices/{academy}/YYYY/MM/{number}.pdf
func ObjectKey(academyID uint, number string, at time.Time) string {
	return fmt.Sprintf("invoices/%d/%04d/%02d/%s.pdf", academyID, at.Year(), int(at.Month()), number)
}
