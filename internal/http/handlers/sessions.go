package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"headshot/internal/domain"
	"headshot/internal/sse"
	"headshot/internal/studio"
	"headshot/internal/thumbnail"
)

// multipart overhead allowed on top of the image limit
const formOverhead = 1 << 20

type createSessionRequest struct {
	ID string `json:"id"`
}

// CreateSession opens a fresh session or resumes one by id, reloading its unlocks.
func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
	}
	if len(req.ID) > 64 {
		a.error(w, http.StatusBadRequest, "bad_request", "session id too long")
		return
	}
	sess, err := a.Sessions.Open(r.Context(), req.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, sess.Snapshot())
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, sess.Snapshot())
}

// UploadSource accepts the multipart field "file" as the new source photo.
func (a *App) UploadSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+formOverhead)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.fail(w, r, sess.RejectOversized(r.ContentLength))
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the session to reject the size.
	data, err := io.ReadAll(io.LimitReader(file, a.MaxUploadBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}
	if _, err := sess.AcceptSource(r.Context(), data); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess.Snapshot())
}

// ResetSource starts over: the photo, every result and the custom slot are dropped.
func (a *App) ResetSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	sess.Reset()
	a.json(w, http.StatusOK, sess.Snapshot())
}

func (a *App) SourceThumbnail(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	src, ok := sess.Source()
	if !ok {
		a.fail(w, r, domain.ErrNoSource)
		return
	}
	size := thumbnail.ParseSize(r.URL.Query().Get("size"))
	data, err := thumbnail.Render(src.Data, size)
	if err != nil {
		a.Logger.Warn().Err(err).Str("session_id", sess.ID()).Msg("http: thumbnail render failed")
		a.error(w, http.StatusUnprocessableEntity, "thumbnail_failed", "source image could not be decoded")
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=60")
	a.writeImage(w, "image/jpeg", "", data)
}

// StreamEvents streams session state changes as Server-Sent Events.
func (a *App) StreamEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	if a.Events == nil {
		a.error(w, http.StatusServiceUnavailable, "events_unavailable", "event stream disabled")
		return
	}
	a.Events.Serve(w, r, sess.ID(), func() *sse.Message {
		data, err := json.Marshal(map[string]any{"type": studio.EventState, "snapshot": sess.Snapshot()})
		if err != nil {
			a.Logger.Error().Err(err).Str("session_id", sess.ID()).Msg("http: encode initial snapshot")
			return nil
		}
		return &sse.Message{Event: studio.EventState, Data: data}
	})
}

func (a *App) session(w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	sess, err := a.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return sess, true
}

func (a *App) writeImage(w http.ResponseWriter, mime, attachment string, data []byte) {
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if attachment != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.ReplaceAll(attachment, `"`, "")))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
