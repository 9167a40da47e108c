package ports

import (
	"context"
	"io"
	"time"

	"talkbox/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session holding the microphone.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture opens the microphone. It fails with an error wrapping
// domain.ErrPermissionDenied when the platform refuses access.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// ClipEncoder turns accumulated PCM into a transmittable clip.
type ClipEncoder interface {
	Encode(pcm []byte, seconds int) (domain.AudioClip, error)
}

// ConversationBackend is the remote conversation API.
type ConversationBackend interface {
	StartConversation(ctx context.Context, userID string) (domain.ConversationStart, error)
	SendText(ctx context.Context, conversationID string, text string) (domain.Reply, error)
	SendAudio(ctx context.Context, conversationID string, audio []byte) (domain.Reply, error)
	RequestExport(ctx context.Context, conversationID string) (domain.Export, error)
}

// Narrator speaks text aloud. Speak returns once narration has finished.
type Narrator interface {
	Available() bool
	Speak(ctx context.Context, text string) error
}

// SpeakingIndicator toggles the narration indicator of a bot bubble.
type SpeakingIndicator interface {
	SetSpeaking(id domain.BubbleID, speaking bool)
}

// RecordingObserver receives recording lifecycle updates.
type RecordingObserver interface {
	RecordingStateChanged(state domain.SessionState, reason domain.SessionStateReason, elapsedSeconds int)
}

// ChatView is the rendering surface of the widget.
type ChatView interface {
	SpeakingIndicator
	RecordingObserver

	AppendUserBubble(bubble domain.UserBubble) domain.BubbleID
	ReplaceUserBubble(id domain.BubbleID, bubble domain.UserBubble)
	AppendBotBubble(bubble domain.BotBubble) domain.BubbleID
	ConversationFinished(conversationID string)
	ExportStateChanged(busy bool)
	Alert(code domain.ErrorCode, message string)
	OpenURL(url string)
}

// ReplyFormatter prepares bot text for display.
type ReplyFormatter interface {
	Format(text string) string
	RewriteURL(rawURL string) string
}

// Ticker delivers recording clock ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

// NewTimeTicker adapts time.Ticker to Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }
