package narration

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// EventSpeak is emitted to the webview for every utterance.
const EventSpeak = "talkbox:speak"

// Emitter publishes an event to the webview.
type Emitter func(event string, payload any)

// SpeakRequest is the payload of EventSpeak.
type SpeakRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// WebviewNarrator delegates speech to the webview's speechSynthesis and
// waits for the frontend to report the end of each utterance.
type WebviewNarrator struct {
	emit Emitter
	lang string

	supported atomic.Bool

	mu      sync.Mutex
	pending map[string]chan struct{}
}

func NewWebviewNarrator(emit Emitter, lang string) *WebviewNarrator {
	if lang == "" {
		lang = "fr-FR"
	}
	n := &WebviewNarrator{
		emit:    emit,
		lang:    lang,
		pending: make(map[string]chan struct{}),
	}
	n.supported.Store(true)
	return n
}

// SetSupported records whether the webview offers speech synthesis.
func (n *WebviewNarrator) SetSupported(supported bool) {
	n.supported.Store(supported)
}

func (n *WebviewNarrator) Available() bool {
	return n.emit != nil && n.supported.Load()
}

func (n *WebviewNarrator) Speak(ctx context.Context, text string) error {
	id := uuid.NewString()
	done := make(chan struct{})

	n.mu.Lock()
	n.pending[id] = done
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		delete(n.pending, id)
		n.mu.Unlock()
	}()

	n.emit(EventSpeak, SpeakRequest{ID: id, Text: text, Lang: n.lang})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish marks utterance id as spoken. It reports false for unknown ids.
func (n *WebviewNarrator) Finish(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	done, ok := n.pending[id]
	if !ok {
		return false
	}
	delete(n.pending, id)
	close(done)
	return true
}
