// Package email entrega los emails del núcleo (magic link, OTP).
// El transporte es SMTP vía go-mail; en dev se puede usar LogMailer.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
)

// Message es un email ya renderizado.
type Message struct {
	To      []string
	Subject string
	HTML    string
	From    string // vacío = remitente por defecto del mailer
}

// Mailer entrega un Message. Un error significa que el email no salió.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configura el transporte SMTP.
type SMTPConfig struct {
	Host               string        `yaml:"host" env:"SMTP_HOST"`
	Port               int           `yaml:"port" env:"SMTP_PORT"`
	Username           string        `yaml:"username" env:"SMTP_USERNAME"`
	Password           string        `yaml:"password" env:"SMTP_PASSWORD"`
	From               string        `yaml:"from" env:"SMTP_FROM"`
	TLSMode            string        `yaml:"tls_mode"` // "auto" | "ssl" | "none"
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// SMTPMailer implementa Mailer con go-mail.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	return &SMTPMailer{cfg: cfg}
}

func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("email: sin destinatarios")
	}
	from := msg.From
	if from == "" {
		from = s.cfg.From
	}

	log := logger.From(ctx).With(
		logger.Component("email.smtp"),
		logger.String("host", s.cfg.Host),
		logger.Count(len(msg.To)),
	)

	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.Timeout = s.cfg.Timeout
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify, // solo dev
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug("email sent")
	return nil
}

// LogMailer no envía nada: deja el email en el log. Solo para dev.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	logger.From(ctx).Info("email (dev, no enviado)",
		logger.Component("email.log"),
		logger.String("to", strings.Join(msg.To, ",")),
		logger.String("subject", msg.Subject),
		logger.String("html", msg.HTML),
	)
	return nil
}
