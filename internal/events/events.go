// Package events fans pipeline events out to UI subscribers. Delivery
// is best-effort: a subscriber that stops draining loses events rather
// than stalling the pipeline.
package events

import (
	"sync"
	"time"
)

// Type discriminates event payloads on the wire.
type Type string

const (
	// TypeSpeechStart signals that an utterance opened, before any text
	// exists. The overlay uses it to flip its recording indicator.
	TypeSpeechStart Type = "speech_start"
	// TypeTranscription carries raw transcription text as soon as it
	// exists, before the minimum word filter runs.
	TypeTranscription Type = "transcription"
	// TypeResponse carries a completed LLM exchange.
	TypeResponse Type = "response"
	// TypeError carries a classified pipeline failure.
	TypeError Type = "error"
	// TypeListening signals the capture toggle changing.
	TypeListening Type = "listening"
	// TypeMode signals the assistant mode changing.
	TypeMode Type = "mode"
)

// Event is the envelope delivered to every subscriber.
type Event struct {
	Type    Type      `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// SpeechStart is the TypeSpeechStart payload.
type SpeechStart struct {
	Started time.Time `json:"started"`
}

// Transcription is the TypeTranscription payload.
type Transcription struct {
	SegmentID string `json:"segment_id"`
	Text      string `json:"text"`
	Engine    string `json:"engine"`
	Filtered  bool   `json:"filtered"`
}

// Response is the TypeResponse payload.
type Response struct {
	Utterance string `json:"utterance"`
	Response  string `json:"response"`
	Mode      string `json:"mode"`
	Cached    bool   `json:"cached"`
}

// PipelineError is the TypeError payload.
type PipelineError struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Listening is the TypeListening payload.
type Listening struct {
	Listening bool `json:"listening"`
}

// ModeChange is the TypeMode payload.
type ModeChange struct {
	Mode string `json:"mode"`
}

// subscriberBuffer bounds how far a subscriber may lag before losing
// events.
const subscriberBuffer = 32

// Hub is the fan-out point. Safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its id and channel.
// The channel closes on Unsubscribe.
func (h *Hub) Subscribe() (int, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// Publish delivers the event to every subscriber without blocking. A
// subscriber whose buffer is full loses its oldest buffered event so
// the newest state always gets through.
func (h *Hub) Publish(eventType Type, payload any) {
	ev := Event{Type: eventType, At: time.Now().UTC(), Payload: payload}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
