package worker

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/config"
)

// Mailer delivers one HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPMailer sends through an SMTP relay with PLAIN auth and STARTTLS when offered.
type SMTPMailer struct {
	addr     string
	host     string
	auth     smtp.Auth
	from     string
	fromName string
}

// NewMailer returns an SMTP mailer, or a LogMailer when no SMTP host is configured.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) Mailer {
	if cfg.SMTPHost == "" {
		return &LogMailer{logger: logger}
	}
	m := &SMTPMailer{
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		host:     cfg.SMTPHost,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
	}
	if cfg.SMTPUser != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return m
}

// Send implements Mailer. smtp.SendMail does not take a context; ctx is checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(m.fromName, m.from, to, subject, html)
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.host, err)
	}
	return nil
}

func buildMessage(fromName, from, to, subject, html string) []byte {
	var b strings.Builder
	sender := from
	if fromName != "" {
		sender = mime.QEncoding.Encode("utf-8", fromName) + " <" + from + ">"
	}
	b.WriteString("From: " + sender + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}

// LogMailer logs emails instead of sending them. Used in development.
type LogMailer struct {
	logger *zap.Logger
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	if m.logger != nil {
		m.logger.Info("email not sent: SMTP not configured", zap.String("to", to), zap.String("subject", subject))
	}
	return nil
}
