package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"talkbox/internal/domain"
	"talkbox/internal/ports"
	"talkbox/internal/queue"
)

// SpeechQueue serializes narrations: one at a time, in enqueue order.
type SpeechQueue struct {
	narrator  ports.Narrator
	indicator ports.SpeakingIndicator
	normalize func(string) string
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	speaking bool
	closed   bool
	pending  *queue.FIFO[domain.SpeechTask]
	idle     chan struct{}
}

func NewSpeechQueue(
	narrator ports.Narrator,
	indicator ports.SpeakingIndicator,
	normalize func(string) string,
	logger zerolog.Logger,
) *SpeechQueue {
	if normalize == nil {
		normalize = func(text string) string { return text }
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &SpeechQueue{
		narrator:  narrator,
		indicator: indicator,
		normalize: normalize,
		logger:    logger.With().Str("component", "speech").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		pending:   queue.New[domain.SpeechTask](),
		idle:      idle,
	}
}

// Enqueue schedules text for narration. Without a usable narrator the
// message stays silent.
func (q *SpeechQueue) Enqueue(text string, indicator domain.BubbleID) {
	if q.narrator == nil || !q.narrator.Available() {
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending.Push(domain.SpeechTask{Text: text, Indicator: indicator})
	if q.speaking {
		q.mu.Unlock()
		return
	}
	q.speaking = true
	q.idle = make(chan struct{})
	q.mu.Unlock()

	go q.drain()
}

// Speaking reports whether a narration is in progress.
func (q *SpeechQueue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Pending returns the number of narrations waiting behind the current one.
func (q *SpeechQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// WaitIdle blocks until the queue has drained or ctx is done.
func (q *SpeechQueue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops pending narrations and interrupts the current one.
func (q *SpeechQueue) Close() {
	q.mu.Lock()
	q.closed = true
	dropped := q.pending.Clear()
	q.mu.Unlock()

	q.cancel()
	if dropped > 0 {
		q.logger.Debug().Int("dropped", dropped).Msg("speech queue closed")
	}
}

func (q *SpeechQueue) drain() {
	for {
		task, ok := q.next()
		if !ok {
			return
		}
		q.speak(task)
	}
}

func (q *SpeechQueue) next() (domain.SpeechTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.pending.Pop()
	if !ok {
		q.speaking = false
		close(q.idle)
		return domain.SpeechTask{}, false
	}
	return task, true
}

func (q *SpeechQueue) speak(task domain.SpeechTask) {
	if task.Indicator != "" && q.indicator != nil {
		q.indicator.SetSpeaking(task.Indicator, true)
	}

	text := q.normalize(task.Text)
	if text != "" && q.ctx.Err() == nil {
		if err := q.narrator.Speak(q.ctx, text); err != nil {
			q.logger.Warn().Err(err).Msg("narration failed")
		}
	}

	if task.Indicator != "" && q.indicator != nil {
		q.indicator.SetSpeaking(task.Indicator, false)
	}
}
