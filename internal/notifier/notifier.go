// Package notifier emails an alert when the platform flags an account.
package notifier

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/notifier/providers"
)

// ErrDisabled is returned by NewFromConfig when email is turned off
var ErrDisabled = errors.New("email notifications disabled")

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// Alert describes a page that showed a warning keyword
type Alert struct {
	Action  string
	Subject string
	Keyword string
	Message string
	At      time.Time
}

// Notifier renders alerts and hands them to a Sender
type Notifier struct {
	sender Sender
	to     string
	tmpl   *template.Template
}

// New creates a notifier sending to toAddr
func New(sender Sender, toAddr string) *Notifier {
	return &Notifier{
		sender: sender,
		to:     toAddr,
		tmpl:   template.Must(template.New("alert").Parse(alertTemplate)),
	}
}

// NewFromConfig creates an SMTP notifier from configuration
func NewFromConfig(cfg config.EmailConfig) (*Notifier, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.SMTPHost == "" || cfg.FromAddr == "" || cfg.ToAddr == "" {
		return nil, fmt.Errorf("email: smtp_host, from_address and to_address are required")
	}
	sender := providers.NewSMTPSender(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPass,
		cfg.FromAddr,
	)
	return New(sender, cfg.ToAddr), nil
}

// SendAlert emails a rendered alert
func (n *Notifier) SendAlert(a Alert) error {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	subject := fmt.Sprintf("[igwarmup] %q flagged during %s", a.Keyword, a.Action)

	var html bytes.Buffer
	if err := n.tmpl.Execute(&html, a); err != nil {
		return fmt.Errorf("failed to render alert: %w", err)
	}
	return n.sender.Send(n.to, subject, html.String(), plainText(a))
}

func plainText(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Warning keyword %q was detected while running %s", a.Keyword, a.Action)
	if a.Subject != "" {
		fmt.Fprintf(&b, " for %s", a.Subject)
	}
	fmt.Fprintf(&b, " at %s.\n\n%s\n", a.At.UTC().Format(time.RFC3339), a.Message)
	b.WriteString("\nThe account may need manual attention before the next run.\n")
	return b.String()
}

const alertTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>Account flagged</h2>
  <p>Warning keyword <strong>{{.Keyword}}</strong> was detected while running <code>{{.Action}}</code>{{if .Subject}} for <strong>{{.Subject}}</strong>{{end}}.</p>
  <p>{{.Message}}</p>
  <p style="color: #888; font-size: 12px;">{{.At.UTC.Format "2006-01-02 15:04:05 MST"}}</p>
</body>
</html>
`
