// Package sse fans session events out to Server-Sent Events subscribers.
package sse

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"

	"headshot/internal/infra"
	"headshot/internal/studio"
)

// Message is one named event for a topic.
type Message struct {
	Event string
	Data  []byte
}

// Hub routes messages to the subscribers of a topic. A single goroutine owns
// the topic table; slow subscribers drop messages instead of blocking it.
type Hub struct {
	topics map[string]map[chan Message]struct{}

	subscribe   chan subscription
	unsubscribe chan subscription
	publish     chan topicMessage
	done        chan struct{}

	logger *infra.Logger
}

type subscription struct {
	ch    chan Message
	topic string
}

type topicMessage struct {
	topic string
	msg   Message
}

func NewHub(logger *infra.Logger) *Hub {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Hub{
		topics:      make(map[string]map[chan Message]struct{}),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		publish:     make(chan topicMessage, 128),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run processes subscriptions and publications until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.subscribe:
			subs, ok := h.topics[s.topic]
			if !ok {
				subs = make(map[chan Message]struct{})
				h.topics[s.topic] = subs
			}
			subs[s.ch] = struct{}{}
		case s := <-h.unsubscribe:
			if subs, ok := h.topics[s.topic]; ok {
				delete(subs, s.ch)
				if len(subs) == 0 {
					delete(h.topics, s.topic)
				}
			}
		case tm := <-h.publish:
			for ch := range h.topics[tm.topic] {
				select {
				case ch <- tm.msg:
				default:
					h.logger.Debug().Str("session_id", tm.topic).Str("event", tm.msg.Event).Msg("sse: dropped message for slow subscriber")
				}
			}
		}
	}
}

// PublishTopic queues msg for every subscriber of topic.
func (h *Hub) PublishTopic(topic string, msg Message) {
	select {
	case h.publish <- topicMessage{topic: topic, msg: msg}:
	case <-h.done:
	}
}

// Subscribe registers ch for topic. The caller owns ch and must unsubscribe.
func (h *Hub) Subscribe(ch chan Message, topic string) bool {
	select {
	case h.subscribe <- subscription{ch: ch, topic: topic}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unsubscribe(ch chan Message, topic string) {
	select {
	case h.unsubscribe <- subscription{ch: ch, topic: topic}:
	case <-h.done:
	}
}

type eventPayload struct {
	Type     string           `json:"type"`
	StyleID  string           `json:"style_id,omitempty"`
	Snapshot *studio.Snapshot `json:"snapshot,omitempty"`
}

// Publish adapts studio events to SSE messages keyed by session id.
func (h *Hub) Publish(sessionID string, ev studio.Event) {
	data, err := json.Marshal(eventPayload{Type: ev.Type, StyleID: ev.StyleID, Snapshot: ev.Snapshot})
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("sse: encode event")
		return
	}
	h.PublishTopic(sessionID, Message{Event: ev.Type, Data: data})
}

var _ studio.Notifier = (*Hub)(nil)
