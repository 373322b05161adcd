package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

const eventCheckoutCompleted = "checkout.session.completed"

// StripeGateway implements Gateway against Stripe hosted checkout.
type StripeGateway struct {
	webhookSecret string
	successURL    string
	cancelURL     string
	currency      string
}

// NewStripeGateway configures the Stripe client. appURL is the public base
// URL the buyer is redirected back to after payment.
func NewStripeGateway(apiKey, webhookSecret, appURL string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{
		webhookSecret: webhookSecret,
		successURL:    appURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:     appURL + "/cart",
		currency:      "usd",
	}
}

// CreateCheckoutSession creates a hosted checkout session and returns its
// redirect URL. The cart correlation data travels in the session metadata.
func (g *StripeGateway) CreateCheckoutSession(req CheckoutRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(g.successURL),
		CancelURL:          stripe.String(g.cancelURL),
	}

	for _, item := range req.Items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(g.currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: productData,
			},
		})
	}

	cartMeta, err := EncodeCartMetadata(req.Cart)
	if err != nil {
		return nil, err
	}
	params.AddMetadata(MetadataCartItems, cartMeta)
	if req.UserID != "" {
		params.AddMetadata(MetadataUserID, req.UserID)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhookEvent verifies the Stripe-Signature header against the webhook
// secret and decodes the event. A missing secret fails verification: forged
// requests must never reach settlement.
func (g *StripeGateway) ParseWebhookEvent(payload []byte, sigHeader string) (*Event, error) {
	if g.webhookSecret == "" || sigHeader == "" {
		return nil, fmt.Errorf("missing webhook signature or secret")
	}

	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	if string(ev.Type) != eventCheckoutCompleted {
		return &Event{Kind: EventIgnored, Type: string(ev.Type)}, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("malformed checkout session payload: %w", err)
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("checkout session payload has no id")
	}

	lines, err := DecodeCartMetadata(sess.Metadata[MetadataCartItems])
	if err != nil {
		return nil, err
	}

	return &Event{
		Kind: EventCheckoutCompleted,
		Type: string(ev.Type),
		Confirmation: &Confirmation{
			PaymentReference: sess.ID,
			UserID:           sess.Metadata[MetadataUserID],
			Lines:            lines,
		},
	}, nil
}
