package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

// Mailer delivers the poster download link after payment.
type Mailer interface {
	SendPosterLink(ctx context.Context, to, customerName, posterURL string) error
}

// ResendMailer sends transactional mail through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer builds a mailer from the API key and sender address.
func NewResendMailer(apiKey, from string) (*ResendMailer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("resend api key required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("mail sender address required")
	}
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}, nil
}

// SendPosterLink emails the download button for a rendered poster.
func (m *ResendMailer) SendPosterLink(ctx context.Context, to, customerName, posterURL string) error {
	html := fmt.Sprintf(`
		<h2>Your poster is ready, %s!</h2>
		<p>Click the button below to download your custom poster:</p>
		<a href="%s" style="display:inline-block;padding:12px 24px;background:#e63946;color:white;text-decoration:none;border-radius:6px;font-weight:bold;">Download Your Poster</a>
		<p style="color:#666;font-size:12px;margin-top:24px;">This is a direct link to your poster image.</p>
	`, customerName, posterURL)
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: "Your Poster is Ready!",
		Html:    html,
	}
	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send poster email: %w", err)
	}
	return nil
}
