package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	live := 0
	if a.Sessions != nil {
		live = a.Sessions.Len()
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"unlock_mode": a.Mode,
		"synthetic":   a.Synthetic,
		"checkout":    a.Checkout != nil,
		"sessions":    live,
	})
}
