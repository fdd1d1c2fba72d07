// Package payments reconciles gateway webhooks and browser callbacks into
// tenant-scoped, idempotent payment transitions with exactly-once activation.
package payments

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
)

// Dependencies are the collaborators a Service is built from.
type Dependencies struct {
	DB          *gorm.DB
	Cache       *redis.Client
	Credentials gateway.Source
	Adapters    gateway.Factory
	Payables    *PayableRegistry
	Notifier    Notifier
	Invoices    InvoiceGenerator
	Metrics     *Metrics
	Logger      *zap.Logger
}

// Config holds the tunables read from the environment.
type Config struct {
	// AllowedIPs restricts webhook sources per gateway. A gateway without
	// entries accepts any source.
	AllowedIPs    map[string][]netip.Prefix
	VerifyTimeout time.Duration
	LeaseDuration time.Duration

	// Scheme and Domain build tenant URLs: scheme://{subdomain}.{domain}/.
	Scheme string
	Domain string
	// PublicBaseURL is where gateways reach this service (webhooks and
	// browser returns).
	PublicBaseURL string
}

type Service struct {
	db          *gorm.DB
	ledger      *Ledger
	audit       *AuditLog
	dispatcher  *Dispatcher
	payables    *PayableRegistry
	credentials gateway.Source
	adapters    gateway.Factory
	metrics     *Metrics
	logger      *zap.Logger
	cfg         Config
	now         func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	payables := deps.Payables
	if payables == nil {
		payables = DefaultPayables()
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = gateway.DefaultTimeout
	}
	adapters := deps.Adapters
	if adapters == nil {
		adapters = gateway.NewFactory(gateway.Options{Timeout: cfg.VerifyTimeout})
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}

	return &Service{
		db:          deps.DB,
		ledger:      NewLedger(deps.DB, deps.Cache, cfg.LeaseDuration),
		audit:       NewAuditLog(deps.DB),
		dispatcher:  NewDispatcher(deps.DB, payables, deps.Notifier, deps.Invoices, deps.Metrics, logger),
		payables:    payables,
		credentials: deps.Credentials,
		adapters:    adapters,
		metrics:     deps.Metrics,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Ledger exposes the idempotency ledger for inspection.
func (s *Service) Ledger() *Ledger { return s.ledger }

// AuditLog exposes the audit log for inspection.
func (s *Service) AuditLog() *AuditLog { return s.audit }

// ParseAllowList parses IPs and CIDRs ("1.2.3.4", "10.0.0.0/8").
func ParseAllowList(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("allow list entry %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("allow list entry %q: %w", e, err)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return out, nil
}

func (s *Service) ipAllowed(gatewayName, remoteIP string) bool {
	prefixes := s.cfg.AllowedIPs[gatewayName]
	if len(prefixes) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(remoteIP))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// tenantBaseURL is scheme://{subdomain}.{domain}.
func (s *Service) tenantBaseURL(subdomain string) string {
	return fmt.Sprintf("%s://%s.%s", s.cfg.Scheme, subdomain, s.cfg.Domain)
}

// homeURL is the global landing page.
func (s *Service) homeURL() string {
	if s.cfg.Domain == "" {
		return "/"
	}
	return fmt.Sprintf("%s://%s/", s.cfg.Scheme, s.cfg.Domain)
}
