package usecase

import (
	"context"
	"sync"

	"talkbox/internal/domain"
	"talkbox/internal/ports"
)

type activeRecording struct {
	parent context.Context
	cancel func()
	audio  ports.AudioSession
	ticker ports.Ticker

	stateMu sync.Mutex
	state   domain.SessionState
	elapsed int

	chunks   *chunkBuffer
	stopTick chan struct{}
	pumpDone chan struct{}
}

func (r *activeRecording) setState(state domain.SessionState) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.state = state
}

func (r *activeRecording) getState() domain.SessionState {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

// beginStop moves Recording to Stopping. Only the first caller wins.
func (r *activeRecording) beginStop() (int, bool) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state != domain.SessionStateRecording {
		return r.elapsed, false
	}
	r.state = domain.SessionStateStopping
	return r.elapsed, true
}

// tick counts one second while recording; ticks racing a stop are dropped.
func (r *activeRecording) tick() (int, bool) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state != domain.SessionStateRecording {
		return r.elapsed, false
	}
	r.elapsed++
	return r.elapsed, true
}

func (r *activeRecording) snapshot() (domain.SessionState, int) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state, r.elapsed
}

type chunkBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

func newChunkBuffer() *chunkBuffer {
	return &chunkBuffer{}
}

func (b *chunkBuffer) Add(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, append([]byte(nil), chunk...))
	b.size += len(chunk)
}

func (b *chunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Take joins the chunks in arrival order and releases them.
func (b *chunkBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, 0, b.size)
	for _, chunk := range b.chunks {
		out = append(out, chunk...)
	}
	b.chunks = nil
	b.size = 0
	return out
}
