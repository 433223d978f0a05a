package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"headshot/internal/http/handlers"
	"headshot/internal/infra"
	"headshot/internal/middleware"
)

// RouterOptions carries the cross-cutting settings of the HTTP surface.
type RouterOptions struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.Country(opts.CountryLookup),
	)

	// Calls that reach the remote image service share one budget per client.
	limited := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/styles", app.Styles)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Get("/events", app.StreamEvents)
			r.Get("/download.zip", app.DownloadZip)

			r.With(limited).Post("/source", app.UploadSource)
			r.Delete("/source", app.ResetSource)
			r.Get("/source/thumbnail", app.SourceThumbnail)

			r.With(limited).Post("/generate-all", app.GenerateAll)
			r.With(limited).Post("/custom", app.Custom)
			r.Get("/custom/image", app.CustomImage)
			r.Get("/custom/download", app.CustomDownload)

			r.Route("/styles/{style}", func(r chi.Router) {
				r.With(limited).Post("/generate", app.Generate)
				r.With(limited).Post("/action", app.Action)
				r.Get("/image", app.StyleImage)
				r.Get("/download", app.StyleDownload)
			})

			r.Post("/purchases/confirm", app.ConfirmPurchase)
		})
	})

	r.Route("/v1/checkout", func(r chi.Router) {
		r.Post("/sessions", app.CreateCheckout)
		r.Post("/webhook", app.CheckoutWebhook)
	})

	return r
}
