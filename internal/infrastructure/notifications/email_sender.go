package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/careloop/doctorbooking/pkg/config"
)

// EmailSender sends HTML email over SMTP with STARTTLS. Delivery is
// best-effort; callers must never treat a send failure as a reason to
// roll anything back.
type EmailSender struct {
	addr     string
	from     string
	password string
	enabled  bool
}

// NewEmailSender creates a new SMTP email sender
func NewEmailSender(cfg *config.SMTPConfig) (*EmailSender, error) {
	if cfg.Enabled && (cfg.Host == "" || cfg.User == "") {
		return nil, fmt.Errorf("SMTP_HOST and SMTP_USER must be set when SMTP is enabled")
	}

	return &EmailSender{
		addr:     cfg.SMTPAddr(),
		from:     cfg.User,
		password: cfg.Password,
		enabled:  cfg.Enabled,
	}, nil
}

// Send delivers an HTML email to the recipient
func (s *EmailSender) Send(ctx context.Context, to, subject, body string) error {
	if !s.enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.from, to, subject, body)

	host := s.addr
	if i := strings.LastIndex(s.addr, ":"); i >= 0 {
		host = s.addr[:i]
	}
	auth := smtp.PlainAuth("", s.from, s.password, host)

	if err := smtp.SendMail(s.addr, auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
