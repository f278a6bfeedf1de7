// Package mailer sends account emails. When SMTP is not configured the
// log mailer is used so local development works without a mail account.
package mailer

import (
	"fmt"
	"log"
	"net/smtp"

	"studybuddy/backend/internal/config"
)

// Mailer sends the two account emails the backend needs.
type Mailer interface {
	SendVerification(to, verificationURL string) error
	SendPasswordReset(to, resetURL string) error
}

// FromConfig returns an SMTP mailer when SMTP settings are present,
// otherwise a mailer that only logs.
func FromConfig(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		log.Println("Warning: SMTP not configured, emails will be logged only")
		return &logMailer{}
	}
	return &smtpMailer{
		addr: cfg.SMTPHost + ":" + cfg.SMTPPort,
		auth: smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost),
		from: cfg.SMTPUser,
	}
}

type smtpMailer struct {
	addr string
	auth smtp.Auth
	from string
}

func (m *smtpMailer) SendVerification(to, verificationURL string) error {
	body := fmt.Sprintf("Please verify your email by clicking on the following link: %s", verificationURL)
	return m.send(to, "Verify Your Email", body)
}

func (m *smtpMailer) SendPasswordReset(to, resetURL string) error {
	body := fmt.Sprintf("Click the link to reset your password: %s\nThis link expires in 1 hour.", resetURL)
	return m.send(to, "Password Reset", body)
}

func (m *smtpMailer) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)
	return smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg))
}

type logMailer struct{}

func (l *logMailer) SendVerification(to, verificationURL string) error {
	log.Printf("mailer: verification for %s: %s", to, verificationURL)
	return nil
}

func (l *logMailer) SendPasswordReset(to, resetURL string) error {
	log.Printf("mailer: password reset for %s: %s", to, resetURL)
	return nil
}
