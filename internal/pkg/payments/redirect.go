package payments

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

// redirectTarget picks where the browser lands after a callback: the
// payable's own page, else the academy home, else the global home.
func (s *Service) redirectTarget(ctx context.Context, p *models.Payment, academy *models.Academy) string {
	if academy == nil || academy.Subdomain == "" || s.cfg.Domain == "" {
		return s.homeURL()
	}
	base := s.tenantBaseURL(academy.Subdomain)
	if p == nil {
		return base + "/"
	}

	payable, err := s.payables.Load(s.db.WithContext(ctx), p)
	if err != nil {
		s.logger.Debug("no payable return path, using academy home",
			zap.Uint("payment_id", p.ID),
			zap.Error(err))
		return base + "/"
	}
	path := payable.PaymentReturnPath()
	if path == "" {
		return base + "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (s *Service) loadAcademy(ctx context.Context, id uint) *models.Academy {
	if id == 0 {
		return nil
	}
	var a models.Academy
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		s.logger.Warn("academy lookup failed", zap.Uint("academy_id", id), zap.Error(err))
		return nil
	}
	return &a
}
