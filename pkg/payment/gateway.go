package payment

import (
	"encoding/json"
	"fmt"
)

// SignatureHeader is the HTTP header carrying the webhook signature.
const SignatureHeader = "Stripe-Signature"

// Metadata keys used to correlate a checkout session with its cart.
const (
	MetadataUserID    = "userId"
	MetadataCartItems = "cartItems"
)

// CartLine is the minimal cart correlation data embedded in the checkout
// session metadata. It deliberately carries no price: the settlement engine
// re-derives pricing from the catalog so client tampering has no effect.
type CartLine struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"quantity"`
}

// LineItem is a priced display line sent to the payment processor.
// UnitAmount is in the smallest currency unit (cents).
type LineItem struct {
	Name       string
	ImageURL   string
	UnitAmount int64
	Quantity   int
}

// CheckoutRequest describes a hosted checkout session to create.
type CheckoutRequest struct {
	UserID string // empty for guest checkout
	Items  []LineItem
	Cart   []CartLine // correlation metadata, consumed by the webhook
}

// Session is the processor's handle for a created checkout session.
type Session struct {
	ID  string
	URL string
}

// EventKind classifies an inbound webhook event after verification.
type EventKind int

const (
	// EventIgnored is any verified event this system does not act on.
	// The receiver acknowledges it so the processor stops redelivering.
	EventIgnored EventKind = iota
	// EventCheckoutCompleted is a confirmed payment carrying a Confirmation.
	EventCheckoutCompleted
)

// Confirmation is the payload of a completed-payment event: the processor's
// unique reference (the order idempotency key) plus the original cart intent.
type Confirmation struct {
	PaymentReference string
	UserID           string
	Lines            []CartLine
}

// Event is a verified, shape-validated webhook event.
type Event struct {
	Kind         EventKind
	Type         string
	Confirmation *Confirmation // non-nil only for EventCheckoutCompleted
}

// Gateway abstracts the external payment processor so services and handlers
// can be exercised against a mock.
type Gateway interface {
	CreateCheckoutSession(req CheckoutRequest) (*Session, error)
	// ParseWebhookEvent verifies the payload signature and decodes the event.
	// A verification failure or malformed payload is an error; an event type
	// this system does not handle is returned as EventIgnored, not an error.
	ParseWebhookEvent(payload []byte, sigHeader string) (*Event, error)
}

// EncodeCartMetadata serializes cart lines for session metadata.
func EncodeCartMetadata(lines []CartLine) (string, error) {
	data, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("failed to encode cart metadata: %w", err)
	}
	return string(data), nil
}

// DecodeCartMetadata parses and validates cart lines from session metadata.
// It fails closed: an empty, malformed, or structurally invalid payload is
// rejected rather than trusted.
func DecodeCartMetadata(raw string) ([]CartLine, error) {
	if raw == "" {
		return nil, fmt.Errorf("missing %s metadata", MetadataCartItems)
	}
	var lines []CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, fmt.Errorf("malformed %s metadata: %w", MetadataCartItems, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty %s metadata", MetadataCartItems)
	}
	for i, l := range lines {
		if l.ProductID == "" {
			return nil, fmt.Errorf("cart line %d has no product id", i)
		}
		if l.Quantity < 1 {
			return nil, fmt.Errorf("cart line %d has invalid quantity %d", i, l.Quantity)
		}
	}
	return lines, nil
}
