package handlers

import (
	"net/http"

	"headshot/internal/catalog"
	"headshot/internal/checkout"
	"headshot/internal/domain"
	"headshot/internal/middleware"
)

type stylesResponse struct {
	Items      []catalog.StylePreset `json:"items"`
	UnlockMode domain.UnlockMode     `json:"unlock_mode"`
	Price      *priceView            `json:"price,omitempty"`
}

type priceView struct {
	checkout.Quote
	Display string `json:"display"`
}

// Styles lists the catalog in display order with the caller's unlock price.
func (a *App) Styles(w http.ResponseWriter, r *http.Request) {
	resp := stylesResponse{Items: a.Catalog.All(), UnlockMode: a.Mode}
	if a.Mode == domain.UnlockPaywall {
		resp.Price = a.priceFor(r)
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) priceFor(r *http.Request) *priceView {
	q := a.Pricing.Quote(middleware.CountryFromContext(r.Context()))
	return &priceView{Quote: q, Display: q.Display()}
}
