package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"headshot/internal/checkout"
	"headshot/internal/domain"
	"headshot/internal/middleware"
)

// maxWebhookBytes bounds provider callbacks.
const maxWebhookBytes = 64 << 10

type createCheckoutRequest struct {
	SessionID string `json:"session_id"`
	PresetID  string `json:"preset_id"`
}

type createCheckoutResponse struct {
	checkout.Session
	Display string `json:"display"`
}

// CreateCheckout opens a hosted checkout for one style of a session.
func (a *App) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if a.Mode != domain.UnlockPaywall || a.Checkout == nil {
		a.fail(w, r, domain.ErrPaywallDisabled)
		return
	}
	var req createCheckoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	sess, err := a.Sessions.Get(strings.TrimSpace(req.SessionID))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	preset, err := a.Catalog.Lookup(req.PresetID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if preset.Custom {
		a.fail(w, r, domain.ErrCustomStyle)
		return
	}
	if sess.Unlocked(preset.ID) {
		a.error(w, http.StatusConflict, "already_unlocked", "style already unlocked")
		return
	}

	cs, err := a.Checkout.CreateSession(r.Context(), checkout.Order{
		SessionID:  sess.ID(),
		PresetID:   preset.ID,
		PresetName: preset.Name,
		Country:    middleware.CountryFromContext(r.Context()),
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("session_id", sess.ID()).Str("style_id", preset.ID).Msg("http: checkout session failed")
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, createCheckoutResponse{Session: cs, Display: cs.Quote.Display()})
}

type confirmPurchaseRequest struct {
	CheckoutSessionID string `json:"checkout_session_id"`
	PresetID          string `json:"preset_id"`
}

// ConfirmPurchase handles the success redirect: the checkout is verified
// with the provider before the style is unlocked.
func (a *App) ConfirmPurchase(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	if a.Mode != domain.UnlockPaywall || a.Checkout == nil {
		a.fail(w, r, domain.ErrPaywallDisabled)
		return
	}
	var req confirmPurchaseRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	payment, err := a.Checkout.Verify(r.Context(), req.CheckoutSessionID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if payment.SessionID != sess.ID() || (req.PresetID != "" && payment.PresetID != req.PresetID) {
		a.Logger.Warn().
			Str("session_id", sess.ID()).
			Str("checkout_id", payment.CheckoutID).
			Str("paid_session", payment.SessionID).
			Str("paid_style", payment.PresetID).
			Msg("http: checkout does not belong to session")
		a.fail(w, r, fmt.Errorf("%w: checkout belongs to another order", domain.ErrPaymentNotVerified))
		return
	}
	if err := sess.CompletePurchase(r.Context(), payment.PresetID); err != nil {
		// The unlock holds in memory even when persisting it failed.
		if !errors.Is(err, domain.ErrUnlockNotPersisted) {
			a.fail(w, r, err)
			return
		}
	}
	a.json(w, http.StatusOK, sess.Snapshot())
}

// CheckoutWebhook unlocks styles from signed provider callbacks so purchases
// survive a lost redirect.
func (a *App) CheckoutWebhook(w http.ResponseWriter, r *http.Request) {
	if a.Checkout == nil {
		a.fail(w, r, domain.ErrPaywallDisabled)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload too large")
		return
	}
	payment, ok, err := a.Checkout.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		a.Logger.Warn().Err(err).Msg("http: rejected checkout webhook")
		a.error(w, http.StatusBadRequest, "invalid_webhook", "webhook could not be verified")
		return
	}
	if !ok {
		a.json(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	sess, err := a.Sessions.Open(r.Context(), payment.SessionID)
	if err != nil {
		a.Logger.Error().Err(err).Str("session_id", payment.SessionID).Msg("http: webhook session unavailable")
		a.error(w, http.StatusInternalServerError, "internal", "session unavailable")
		return
	}
	if err := sess.CompletePurchase(r.Context(), payment.PresetID); err != nil {
		if errors.Is(err, domain.ErrPaywallDisabled) || errors.Is(err, domain.ErrStyleNotFound) || errors.Is(err, domain.ErrCustomStyle) {
			a.Logger.Warn().Err(err).Str("style_id", payment.PresetID).Msg("http: webhook for unknown style ignored")
			a.json(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		// A non-2xx answer makes the provider redeliver the event.
		a.Logger.Error().Err(err).Str("session_id", payment.SessionID).Msg("http: webhook unlock failed")
		a.error(w, http.StatusInternalServerError, "internal", "unlock failed")
		return
	}
	a.Logger.Info().
		Str("session_id", payment.SessionID).
		Str("style_id", payment.PresetID).
		Str("checkout_id", payment.CheckoutID).
		Msg("http: purchase recorded from webhook")
	a.json(w, http.StatusOK, map[string]bool{"received": true})
}
