package mail

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/ManuelReschke/AcademyPay/internal/pkg/env"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

// LoadConfig reads SMTP_* from the environment.
func LoadConfig() Config {
	return Config{
		Host:     env.GetEnv("SMTP_HOST", ""),
		Port:     env.GetEnv("SMTP_PORT", "587"),
		Username: env.GetEnv("SMTP_USERNAME", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		Sender:   env.GetEnv("SMTP_SENDER", ""),
	}
}

func (c Config) Enabled() bool {
	return c.Host != ""
}

// SMTPMailer sends HTML emails via SMTP
type SMTPMailer struct {
	cfg    Config
	send   SendFunc
	logger *zap.Logger
}

func NewSMTPMailer(cfg Config, logger *zap.Logger) *SMTPMailer {
	if cfg.Sender == "" {
		host := cfg.Host
		if host == "" {
			host = "localhost"
		}
		cfg.Sender = fmt.Sprintf("no-reply@%s", host)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail, logger: logger}
}

// WithSender swaps the transport, mostly for tests.
func (m *SMTPMailer) WithSender(send SendFunc) *SMTPMailer {
	m.send = send
	return m
}

func (m *SMTPMailer) SendMail(to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("mail: empty recipient")
	}
	if strings.ContainsAny(to+subject, "\r\n") {
		return fmt.Errorf("mail: header injection in recipient or subject")
	}

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.cfg.Sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	if err := m.send(addr, auth, m.cfg.Sender, []string{to}, msg); err != nil {
		m.logger.Error("smtp send failed", zap.String("addr", addr), zap.Error(err))
		return err
	}
	m.logger.Info("email sent", zap.String("addr", addr))
	return nil
}
