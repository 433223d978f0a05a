package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"headshot/internal/domain"
	"headshot/internal/studio"
	"headshot/pkg/zip"
)

type paywallView struct {
	StyleID     string     `json:"style_id"`
	Name        string     `json:"name"`
	Price       *priceView `json:"price"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
}

type actionResponse struct {
	Action      domain.Action    `json:"action"`
	Style       studio.StyleView `json:"style"`
	DownloadURL string           `json:"download_url,omitempty"`
	Paywall     *paywallView     `json:"paywall,omitempty"`
}

// Generate renders one style. The high tier is only honoured in upgrade mode.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	styleID := chi.URLParam(r, "style")
	tier := domain.TierPreview
	if v := r.URL.Query().Get("tier"); v != "" {
		tier = domain.ParseTier(v)
	}
	if _, err := sess.GenerateAt(r.Context(), styleID, tier); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, styleView(sess, styleID))
}

// Action performs whatever the style card offers next.
func (a *App) Action(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	styleID := chi.URLParam(r, "style")
	out, err := sess.RouteAction(r.Context(), styleID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := actionResponse{Action: out.Action, Style: styleView(sess, styleID)}
	if out.Download != nil {
		resp.DownloadURL = fmt.Sprintf("/v1/sessions/%s/styles/%s/download", sess.ID(), styleID)
	}
	if out.Paywall != nil {
		resp.Paywall = &paywallView{
			StyleID: out.Paywall.StyleID,
			Name:    out.Paywall.Name,
			Price:   a.priceFor(r),
		}
		if a.Checkout != nil {
			resp.Paywall.CheckoutURL = "/v1/checkout/sessions"
		}
	}
	a.json(w, http.StatusOK, resp)
}

// StyleImage serves the retained image of a style for display, whatever its tier.
func (a *App) StyleImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	img, err := sess.StyleImage(chi.URLParam(r, "style"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	a.writeImage(w, img.MIMEType, "", img.Data)
}

// StyleDownload serves the style as an attachment when it may be downloaded.
func (a *App) StyleDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	d, err := sess.Download(chi.URLParam(r, "style"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeImage(w, d.MIMEType, d.FileName, d.Data)
}

// GenerateAll marks every pending style Loading and runs the batch in the background.
func (a *App) GenerateAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	batch, err := sess.PrepareAll()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if batch == nil {
		a.json(w, http.StatusOK, map[string]any{"styles": []string{}, "snapshot": sess.Snapshot()})
		return
	}
	go batch.Run(a.background)
	a.json(w, http.StatusAccepted, map[string]any{"styles": batch.StyleIDs(), "snapshot": sess.Snapshot()})
}

type customRequest struct {
	Instruction string `json:"instruction"`
}

// Custom runs the free-text flow on the custom slot.
func (a *App) Custom(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req customRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 16<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if _, err := sess.GenerateCustom(r.Context(), req.Instruction); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess.Snapshot().Custom)
}

func (a *App) CustomImage(w http.ResponseWriter, r *http.Request) {
	a.customFile(w, r, false)
}

func (a *App) CustomDownload(w http.ResponseWriter, r *http.Request) {
	a.customFile(w, r, true)
}

func (a *App) customFile(w http.ResponseWriter, r *http.Request, attach bool) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	d, err := sess.CustomDownload()
	if err != nil {
		if !attach && errors.Is(err, domain.ErrNotDownloadable) {
			err = domain.ErrNotFound
		}
		a.fail(w, r, err)
		return
	}
	name := ""
	if attach {
		name = d.FileName
	}
	a.writeImage(w, d.MIMEType, name, d.Data)
}

// DownloadZip bundles every downloadable style plus the custom result.
func (a *App) DownloadZip(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	downloads := sess.Downloads()
	if custom, err := sess.CustomDownload(); err == nil {
		downloads = append(downloads, custom)
	}
	if len(downloads) == 0 {
		a.fail(w, r, domain.ErrNotDownloadable)
		return
	}
	assets := make([]zip.Asset, 0, len(downloads))
	for _, d := range downloads {
		assets = append(assets, zip.Asset{Filename: d.FileName, MIME: d.MIMEType, Data: d.Data})
	}
	data, err := zip.ArchiveAssets(assets, a.now())
	if err != nil {
		a.fail(w, r, fmt.Errorf("archive downloads: %w", err))
		return
	}
	a.writeImage(w, "application/zip", "pro-headshots.zip", data)
}

func styleView(sess *studio.Session, styleID string) studio.StyleView {
	for _, v := range sess.Snapshot().Styles {
		if v.ID == styleID {
			return v
		}
	}
	return studio.StyleView{ID: styleID}
}
