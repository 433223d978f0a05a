package sse

import (
	"bytes"
	"fmt"
	"net/http"
	"time"
)

// KeepAlive is the interval of comment frames that keep proxies from closing idle streams.
var KeepAlive = 25 * time.Second

// Serve streams topic to the client until the request ends. initial, when
// set, is built after the subscription is registered and sent first, so no
// change between the two is lost.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string, initial func() *Message) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	msgCh := make(chan Message, 16)
	if !h.Subscribe(msgCh, topic) {
		http.Error(w, "event hub stopped", http.StatusServiceUnavailable)
		return
	}
	defer h.Unsubscribe(msgCh, topic)

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	if initial != nil {
		if msg := initial(); msg != nil {
			writeMessage(w, *msg)
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-msgCh:
			writeMessage(w, msg)
			flusher.Flush()
		}
	}
}

func writeMessage(w http.ResponseWriter, msg Message) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	for _, line := range bytes.Split(msg.Data, []byte("\n")) {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
