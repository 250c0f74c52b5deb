package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Checkout session event types this service reacts to.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

// CheckoutSession is the processor's representation of a pending purchase.
type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a normalized webhook event linked to a poster session.
type Event struct {
	Type          string
	SessionID     string
	Email         string
	CustomerName  string
}

// CheckoutProvider creates hosted checkout sessions.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, sessionID, posterName string) (CheckoutSession, error)
}

// EventVerifier authenticates and normalizes incoming webhook payloads.
type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (Event, error)
}

// StripeClient wraps the Stripe SDK behind the two narrow interfaces above.
type StripeClient struct {
	api           *client.API
	webhookSecret string
	priceCents    int64
	successURL    string
	cancelURL     string
}

// Config holds Stripe keys and checkout redirect targets.
type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceCents    int64
	SuccessURL    string
	CancelURL     string
}

// NewStripeClient builds a constructed-once injected Stripe handle.
func NewStripeClient(cfg Config) (*StripeClient, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("stripe webhook secret required")
	}
	price := cfg.PriceCents
	if price <= 0 {
		price = 199
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeClient{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		priceCents:    price,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}, nil
}

// CreateCheckout opens a one-item card checkout for the poster purchase.
// The poster session id travels in the checkout metadata so the webhook
// can find our record.
func (c *StripeClient) CreateCheckout(ctx context.Context, sessionID, posterName string) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(c.priceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Poster Download"),
						Description: stripe.String(fmt.Sprintf("Custom poster for %s", posterName)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.successURL + "?session=" + sessionID),
		CancelURL:  stripe.String(c.cancelURL),
	}
	params.Context = ctx
	params.AddMetadata("sessionId", sessionID)
	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// VerifyEvent checks the webhook signature and extracts the poster session
// link. Events other than the two checkout types come back with just the
// type set so callers can acknowledge and ignore them.
func (c *StripeClient) VerifyEvent(payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("verify webhook signature: %w", err)
	}
	out := Event{Type: string(event.Type)}
	if out.Type != EventCheckoutCompleted && out.Type != EventCheckoutExpired {
		return out, nil
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return Event{}, fmt.Errorf("decode checkout session: %w", err)
	}
	out.SessionID = session.Metadata["sessionId"]
	if session.CustomerDetails != nil {
		out.Email = session.CustomerDetails.Email
		out.CustomerName = session.CustomerDetails.Name
	}
	if out.CustomerName == "" {
		out.CustomerName = "there"
	}
	return out, nil
}
