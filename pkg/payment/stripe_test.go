package payment_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"storefront/pkg/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload produces a Stripe-Signature header for a raw webhook body.
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func completedEventPayload(sessionID, cartMeta, userID string) []byte {
	meta := fmt.Sprintf(`{"cartItems":%q`, cartMeta)
	if userID != "" {
		meta += fmt.Sprintf(`,"userId":%q`, userID)
	}
	meta += `}`
	return []byte(fmt.Sprintf(
		`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":%q,"metadata":%s}}}`,
		sessionID, meta,
	))
}

func TestStripeGateway_ParseWebhookEvent_CheckoutCompleted(t *testing.T) {
	gateway := payment.NewStripeGateway("sk_test_key", testWebhookSecret, "http://localhost:8080")

	payload := completedEventPayload("cs_test_123", `[{"id":"p1","quantity":2},{"id":"p2","quantity":1}]`, "user-42")
	sig := signPayload(payload, testWebhookSecret, time.Now())

	event, err := gateway.ParseWebhookEvent(payload, sig)
	require.NoError(t, err)

	assert.Equal(t, payment.EventCheckoutCompleted, event.Kind)
	require.NotNil(t, event.Confirmation)
	assert.Equal(t, "cs_test_123", event.Confirmation.PaymentReference)
	assert.Equal(t, "user-42", event.Confirmation.UserID)
	assert.Equal(t, []payment.CartLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}, event.Confirmation.Lines)
}

func TestStripeGateway_ParseWebhookEvent_GuestCheckout(t *testing.T) {
	gateway := payment.NewStripeGateway("sk_test_key", testWebhookSecret, "http://localhost:8080")

	payload := completedEventPayload("cs_guest", `[{"id":"p1","quantity":1}]`, "")
	sig := signPayload(payload, testWebhookSecret, time.Now())

	event, err := gateway.ParseWebhookEvent(payload, sig)
	require.NoError(t, err)
	require.NotNil(t, event.Confirmation)
	assert.Empty(t, event.Confirmation.UserID)
}

func TestStripeGateway_ParseWebhookEvent_RejectsBadSignature(t *testing.T) {
	gateway := payment.NewStripeGateway("sk_test_key", testWebhookSecret, "http://localhost:8080")

	payload := completedEventPayload("cs_test_123", `[{"id":"p1","quantity":1}]`, "")

	// Signed with the wrong secret.
	sig := signPayload(payload, "whsec_wrong_secret", time.Now())
	_, err := gateway.ParseWebhookEvent(payload, sig)
	assert.Error(t, err)

	// Body tampered after signing.
	sig = signPayload(payload, testWebhookSecret, time.Now())
	tampered := completedEventPayload("cs_other", `[{"id":"p1","quantity":99}]`, "")
	_, err = gateway.ParseWebhookEvent(tampered, sig)
	assert.Error(t, err)

	// Missing header entirely.
	_, err = gateway.ParseWebhookEvent(payload, "")
	assert.Error(t, err)
}

func TestStripeGateway_ParseWebhookEvent_RejectsStaleTimestamp(t *testing.T) {
	gateway := payment.NewStripeGateway("sk_test_key", testWebhookSecret, "http://localhost:8080")

	payload := completedEventPayload("cs_test_123", `[{"id":"p1","quantity":1}]`, "")
	sig := signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))

	_, err := gateway.ParseWebhookEvent(payload, sig)
	assert.Error(t, err)
}

func TestStripeGateway_ParseWebhookEvent_IgnoresOtherEventTypes(t *testing.T) {
	gateway := payment.NewStripeGateway("sk_test_key", testWebhookSecret, "http://localhost:8080")

	payload := []byte(`{"id":"evt_2","type":"payment_intent.created","data":{"object":{"id":"pi_1"}}}`)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	event, err := gateway.ParseWebhookEvent(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, payment.EventIgnored, event.Kind)
	assert.Equal(t, "payment_intent.created", event.Type)
	assert.Nil(t, event.Confirmation)
}

func TestStripeGateway_ParseWebhookEvent_RejectsMissingCartMetadata(t *testing.T) {
	gateway := payment.NewStripeGateway("sk_test_key", testWebhookSecret, "http://localhost:8080")

	payload := []byte(`{"id":"evt_3","type":"checkout.session.completed","data":{"object":{"id":"cs_no_meta","metadata":{}}}}`)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	_, err := gateway.ParseWebhookEvent(payload, sig)
	assert.Error(t, err)
}

func TestStripeGateway_ParseWebhookEvent_RequiresConfiguredSecret(t *testing.T) {
	gateway := payment.NewStripeGateway("sk_test_key", "", "http://localhost:8080")

	payload := completedEventPayload("cs_test_123", `[{"id":"p1","quantity":1}]`, "")
	sig := signPayload(payload, testWebhookSecret, time.Now())

	_, err := gateway.ParseWebhookEvent(payload, sig)
	assert.Error(t, err)
}
