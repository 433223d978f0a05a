package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"headshot/internal/catalog"
	"headshot/internal/checkout"
	"headshot/internal/domain"
	"headshot/internal/infra"
	"headshot/internal/sse"
	"headshot/internal/studio"
)

// App carries the collaborators shared by every HTTP handler.
type App struct {
	Sessions *studio.Registry
	Catalog  *catalog.Catalog
	Events   *sse.Hub
	Checkout checkout.Provider
	Pricing  *checkout.Pricing
	Logger   *infra.Logger

	Mode           domain.UnlockMode
	MaxUploadBytes int64
	Synthetic      bool

	// background outlives requests so generate-all keeps running after the 202.
	background context.Context
	now        func() time.Time
}

// Options configures NewApp.
type Options struct {
	Sessions       *studio.Registry
	Catalog        *catalog.Catalog
	Events         *sse.Hub
	Checkout       checkout.Provider
	Pricing        *checkout.Pricing
	Logger         *infra.Logger
	Mode           domain.UnlockMode
	MaxUploadBytes int64
	Synthetic      bool
	Background     context.Context
}

func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	pricing := opts.Pricing
	if pricing == nil {
		pricing = checkout.NewPricing()
	}
	mode := opts.Mode
	if mode == "" {
		mode = domain.UnlockPaywall
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = studio.MaxSourceBytes
	}
	bg := opts.Background
	if bg == nil {
		bg = context.Background()
	}
	return &App{
		Sessions:       opts.Sessions,
		Catalog:        cat,
		Events:         opts.Events,
		Checkout:       opts.Checkout,
		Pricing:        pricing,
		Logger:         logger,
		Mode:           mode,
		MaxUploadBytes: maxUpload,
		Synthetic:      opts.Synthetic,
		background:     bg,
		now:            time.Now,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps domain errors to HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var rejection *domain.RejectionError
	switch {
	case errors.As(err, &rejection):
		a.error(w, http.StatusUnprocessableEntity, "validation_rejected", rejection.Message)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "session or image not found")
	case errors.Is(err, domain.ErrStyleNotFound):
		a.error(w, http.StatusNotFound, "style_not_found", "unknown style")
	case errors.Is(err, domain.ErrCustomStyle):
		a.error(w, http.StatusBadRequest, "custom_style", "the custom style takes a free-text instruction")
	case errors.Is(err, domain.ErrEmptyInstruction):
		a.error(w, http.StatusBadRequest, "empty_instruction", "instruction is required")
	case errors.Is(err, domain.ErrNoSource):
		a.error(w, http.StatusConflict, "no_source", "upload a photo first")
	case errors.Is(err, domain.ErrBatchInProgress):
		a.error(w, http.StatusConflict, "batch_in_progress", "generate all is already running")
	case errors.Is(err, domain.ErrFileTooLarge):
		a.error(w, http.StatusRequestEntityTooLarge, "file_too_large", "File size too large. Please upload an image under 5MB.")
	case errors.Is(err, domain.ErrUnsupportedMedia):
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media", "upload a JPG, PNG or WEBP image")
	case errors.Is(err, domain.ErrNotDownloadable):
		a.error(w, http.StatusForbidden, "not_downloadable", "this image is not unlocked for download")
	case errors.Is(err, domain.ErrTierUnavailable):
		a.error(w, http.StatusForbidden, "tier_unavailable", "quality tier unavailable")
	case errors.Is(err, domain.ErrKeySelectionDeclined):
		a.error(w, http.StatusForbidden, "key_required", "a high quality API key is required")
	case errors.Is(err, domain.ErrPaywallDisabled):
		a.error(w, http.StatusNotFound, "paywall_disabled", "purchases are not enabled")
	case errors.Is(err, domain.ErrPaymentNotVerified):
		a.error(w, http.StatusPaymentRequired, "payment_not_verified", "payment could not be verified")
	case errors.Is(err, domain.ErrCheckoutFailed):
		a.error(w, http.StatusBadGateway, "checkout_failed", "checkout is unavailable, try again later")
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to write
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("http: unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
