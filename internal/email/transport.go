package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

// ErrNotConfigured is returned when a send is attempted without credentials.
var ErrNotConfigured = errors.New("email transport not configured: missing sending domain or API key")

// Transport delivers one message to one address.
type Transport interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// MailgunTransport sends through the Mailgun HTTP API.
type MailgunTransport struct {
	domain  string
	apiKey  string
	apiBase string
	from    string
}

// NewMailgunTransport never fails; missing configuration surfaces on Send.
func NewMailgunTransport(domain, apiKey, apiBase, from string) *MailgunTransport {
	return &MailgunTransport{domain: domain, apiKey: apiKey, apiBase: apiBase, from: from}
}

// Configured reports whether Send can reach the provider.
func (t *MailgunTransport) Configured() bool {
	return t.domain != "" && t.apiKey != ""
}

func (t *MailgunTransport) Send(ctx context.Context, to, subject, html, text string) error {
	if !t.Configured() {
		return ErrNotConfigured
	}

	mg := mailgun.NewMailgun(t.domain, t.apiKey)
	if t.apiBase != "" {
		mg.SetAPIBase(t.apiBase)
	}

	from := t.from
	if from == "" {
		from = "Fleet Maintenance <alerts@" + t.domain + ">"
	}

	msg := mg.NewMessage(from, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}

	if _, _, err := mg.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailgun send to %s: %w", to, err)
	}
	return nil
}
