package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/url"
	"strings"
)

// SMTPConfig holds mail server credentials.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPMailer sends password-reset links over SMTP.
type SMTPMailer struct {
	cfg      SMTPConfig
	resetURL string
}

// NewSMTPMailer builds a mailer; resetURL receives the token as ?token=.
func NewSMTPMailer(cfg SMTPConfig, resetURL string) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, resetURL: resetURL}
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"<p>We received a request to reset your password.</p>"+
			"<p><a href=\"%s\">Choose a new password</a></p>"+
			"<p>The link expires in one hour. If you did not ask for it, ignore this email.</p>",
		resetLink(m.resetURL, token),
	)
	return m.send([]string{email}, "Reset your password", body)
}

func (m *SMTPMailer) send(to []string, subject, html string) error {
	cfg := m.cfg
	if cfg.Host == "" {
		return fmt.Errorf("mail: MAIL_HOST not configured")
	}

	raw := buildMessage(fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From), to, subject, html)
	addr := cfg.Host + ":" + cfg.Port

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	// 465 is implicit TLS; 587 and 25 upgrade with STARTTLS inside SendMail.
	if cfg.Port == "465" {
		return sendTLS(addr, cfg.Host, auth, cfg.From, to, raw)
	}
	return smtp.SendMail(addr, auth, cfg.From, to, raw)
}

func sendTLS(addr, host string, auth smtp.Auth, from string, to []string, raw []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("mail: TLS dial: %w", err)
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func buildMessage(from string, to []string, subject, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}

func resetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// LogMailer stands in for SMTP when no mail host is configured. The reset
// link carries a live credential, so it is only written when RevealLink is
// set (local runs); otherwise just the recipient is logged.
type LogMailer struct {
	ResetURL   string
	RevealLink bool
	Log        *slog.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	if !m.RevealLink {
		m.Log.Warn("mail not configured, password reset not delivered", "email", email, "token_length", len(token))
		return nil
	}
	m.Log.Warn("mail not configured, password reset link logged", "email", email, "link", resetLink(m.ResetURL, token))
	return nil
}
