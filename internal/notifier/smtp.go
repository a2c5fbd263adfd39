package notifier

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/opswatch/coalmine/internal/canary"
)

// SMTPConfig configures the core SMTP transport. User/Pass must be
// both-or-neither, per spec.md §6.
type SMTPConfig struct {
	Host   string
	Port   int
	User   string
	Pass   string
	Sender string
}

// SMTPNotifier dispatches notifications over SMTP using the standard
// library's net/smtp — the direct Go analogue of the source's own use of
// Python's smtplib; no third-party mail client appears anywhere in the
// retrieved corpus, so there is no ecosystem library to prefer here.
type SMTPNotifier struct {
	cfg SMTPConfig
}

// NewSMTPNotifier constructs a transport from cfg. Returns an error if
// User/Pass are set inconsistently.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if (cfg.User == "") != (cfg.Pass == "") {
		return nil, fmt.Errorf("notifier: smtp user and pass must be both set or both empty")
	}
	return &SMTPNotifier{cfg: cfg}, nil
}

func (n *SMTPNotifier) Notify(_ context.Context, c *canary.Canary, kind Kind) error {
	if len(c.Emails) == 0 {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	subject := Subject(c, kind)
	body := Body(c, kind)
	recipients := sortedEmails(c.Emails)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.cfg.Sender, joinComma(recipients), subject, body)

	var auth smtp.Auth
	if n.cfg.User != "" {
		auth = smtp.PlainAuth("", n.cfg.User, n.cfg.Pass, n.cfg.Host)
	}
	return smtp.SendMail(addr, auth, n.cfg.Sender, recipients, []byte(msg))
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
