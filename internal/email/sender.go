package email

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/gomail.v2"

	"github.com/medgate/records-api/pkg/logger"
)

// SMTPConfig is read from SMTP_* environment variables. An empty host
// disables outbound mail entirely.
type SMTPConfig struct {
	Host     string `envconfig:"HOST"`
	Port     int    `envconfig:"PORT" default:"587"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
	From     string `envconfig:"FROM" default:"no-reply@medgate.local"`
}

func LoadSMTPConfig() (SMTPConfig, error) {
	var cfg SMTPConfig
	if err := envconfig.Process("SMTP", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load smtp config: %w", err)
	}
	return cfg, nil
}

// Sender delivers account emails. Implementations must be safe for
// concurrent use.
type Sender interface {
	SendPasswordReset(to, token string, expiresAt time.Time) error
}

type smtpSender struct {
	cfg    SMTPConfig
	logger *logger.Logger
}

// NewSender returns an SMTP-backed sender, or a no-op sender when no
// host is configured.
func NewSender(cfg SMTPConfig, logger *logger.Logger) Sender {
	if cfg.Host == "" {
		logger.Info("SMTP not configured, outbound email disabled")
		return &nopSender{}
	}
	return &smtpSender{cfg: cfg, logger: logger}
}

func (s *smtpSender) SendPasswordReset(to, token string, expiresAt time.Time) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Password reset request")
	m.SetBody("text/plain", fmt.Sprintf(
		"A password reset was requested for your account.\n\n"+
			"Reset token: %s\n\n"+
			"The token expires at %s. If you did not request this, ignore this message.",
		token, expiresAt.Format(time.RFC1123),
	))

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

type nopSender struct{}

func (*nopSender) SendPasswordReset(string, string, time.Time) error { return nil }
