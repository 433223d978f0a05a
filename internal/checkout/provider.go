// Package checkout takes payments for style unlocks.
package checkout

import "context"

// Order asks for the purchase of one style within a studio session.
type Order struct {
	SessionID  string
	PresetID   string
	PresetName string
	Country    string
}

// Session is a hosted checkout the buyer is redirected to.
type Session struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Quote Quote  `json:"quote"`
}

// Payment is a confirmed purchase.
type Payment struct {
	CheckoutID  string
	SessionID   string
	PresetID    string
	AmountTotal int64
	Currency    string
}

// Provider is the remote checkout service.
type Provider interface {
	CreateSession(ctx context.Context, order Order) (Session, error)
	Verify(ctx context.Context, checkoutID string) (Payment, error)
	// ParseWebhook authenticates a provider callback. ok is false for events
	// that do not complete a purchase.
	ParseWebhook(payload []byte, signature string) (payment Payment, ok bool, err error)
}
