package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"headshot/internal/domain"
	"headshot/internal/infra"
)

const (
	metaSession = "studio_session"
	metaPreset  = "preset_id"

	eventCheckoutCompleted = "checkout.session.completed"
)

type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeOptions configures the Stripe provider.
type StripeOptions struct {
	SecretKey     string
	WebhookSecret string
	AppURL        string
	Pricing       *Pricing
	Logger        *infra.Logger
}

// StripeProvider creates Stripe Checkout sessions in payment mode.
type StripeProvider struct {
	sessions      sessionAPI
	webhookSecret string
	appURL        string
	pricing       *Pricing
	logger        *infra.Logger
}

// NewStripeProvider builds a provider backed by the Stripe API.
func NewStripeProvider(opts StripeOptions) (*StripeProvider, error) {
	key := strings.TrimSpace(opts.SecretKey)
	if key == "" {
		return nil, errors.New("checkout: stripe secret key is required")
	}
	sc := &client.API{}
	sc.Init(key, nil)
	return newStripeProvider(sc.CheckoutSessions, opts), nil
}

func newStripeProvider(sessions sessionAPI, opts StripeOptions) *StripeProvider {
	pricing := opts.Pricing
	if pricing == nil {
		pricing = NewPricing()
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &StripeProvider{
		sessions:      sessions,
		webhookSecret: strings.TrimSpace(opts.WebhookSecret),
		appURL:        strings.TrimRight(opts.AppURL, "/"),
		pricing:       pricing,
		logger:        logger,
	}
}

// CreateSession opens a hosted checkout for one style.
func (p *StripeProvider) CreateSession(ctx context.Context, order Order) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	quote := p.pricing.Quote(order.Country)
	cs, err := p.sessions.New(p.buildParams(order, quote))
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", domain.ErrCheckoutFailed, err)
	}
	if cs == nil || cs.URL == "" {
		return Session{}, fmt.Errorf("%w: checkout session has no url", domain.ErrCheckoutFailed)
	}

	p.logger.Info().
		Str("session_id", order.SessionID).
		Str("style_id", order.PresetID).
		Str("checkout_id", cs.ID).
		Str("price", quote.Display()).
		Msg("checkout: session created")
	return Session{ID: cs.ID, URL: cs.URL, Quote: quote}, nil
}

func (p *StripeProvider) buildParams(order Order, quote Quote) *stripe.CheckoutSessionParams {
	success := fmt.Sprintf("%s/?success=true&preset_id=%s&checkout_session_id={CHECKOUT_SESSION_ID}",
		p.appURL, url.QueryEscape(order.PresetID))
	return &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(quote.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String("ProHeadshot: " + order.PresetName),
					Description: stripe.String("High-resolution download of your " + order.PresetName + " headshot"),
				},
				UnitAmount: stripe.Int64(quote.UnitAmount),
			},
			Quantity: stripe.Int64(1),
		}},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(success),
		CancelURL:         stripe.String(p.appURL + "/?canceled=true"),
		ClientReferenceID: stripe.String(order.SessionID),
		Metadata: map[string]string{
			metaSession: order.SessionID,
			metaPreset:  order.PresetID,
		},
	}
}

// Verify confirms that a checkout session was paid.
func (p *StripeProvider) Verify(ctx context.Context, checkoutID string) (Payment, error) {
	if err := ctx.Err(); err != nil {
		return Payment{}, err
	}
	checkoutID = strings.TrimSpace(checkoutID)
	if checkoutID == "" {
		return Payment{}, domain.ErrPaymentNotVerified
	}
	cs, err := p.sessions.Get(checkoutID, nil)
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %v", domain.ErrCheckoutFailed, err)
	}
	return paymentFrom(cs)
}

// ParseWebhook verifies the Stripe-Signature header and extracts completed payments.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (Payment, bool, error) {
	if p.webhookSecret == "" {
		return Payment{}, false, errors.New("checkout: webhook secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Payment{}, false, fmt.Errorf("checkout: verify webhook: %w", err)
	}
	if string(event.Type) != eventCheckoutCompleted {
		return Payment{}, false, nil
	}
	if event.Data == nil {
		return Payment{}, false, errors.New("checkout: webhook event has no data")
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return Payment{}, false, fmt.Errorf("checkout: decode webhook session: %w", err)
	}
	payment, err := paymentFrom(&cs)
	if err != nil {
		// Delayed payment methods complete the session before funds arrive.
		p.logger.Info().Str("checkout_id", cs.ID).Msg("checkout: completed session not yet paid")
		return Payment{}, false, nil
	}
	return payment, true, nil
}

func paymentFrom(cs *stripe.CheckoutSession) (Payment, error) {
	if cs == nil || cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return Payment{}, domain.ErrPaymentNotVerified
	}
	payment := Payment{
		CheckoutID:  cs.ID,
		SessionID:   firstNonEmpty(cs.Metadata[metaSession], cs.ClientReferenceID),
		PresetID:    cs.Metadata[metaPreset],
		AmountTotal: cs.AmountTotal,
		Currency:    string(cs.Currency),
	}
	if payment.SessionID == "" || payment.PresetID == "" {
		return Payment{}, fmt.Errorf("%w: session %s carries no order metadata", domain.ErrPaymentNotVerified, cs.ID)
	}
	return payment, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var _ Provider = (*StripeProvider)(nil)
