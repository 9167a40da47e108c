package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateRecording SessionState = "recording"
	SessionStateStopping  SessionState = "stopping"
	SessionStateError     SessionState = "error"
)

// SessionStateReason provides a structured reason for recording transitions.
type SessionStateReason string

const (
	SessionReasonMicCold            SessionStateReason = "mic_cold"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonRecordingTick      SessionStateReason = "recording_tick"
	SessionReasonRecordingStopped   SessionStateReason = "recording_stopped"
	SessionReasonMaxDuration        SessionStateReason = "max_duration"
	SessionReasonRecordingDiscarded SessionStateReason = "recording_discarded"
	SessionReasonNoAudio            SessionStateReason = "no_audio"
)

// ErrorCode identifies user-facing failures.
type ErrorCode string

const (
	ErrorCodeStartup          ErrorCode = "startup"
	ErrorCodePermissionDenied ErrorCode = "permission_denied"
	ErrorCodeNetwork          ErrorCode = "network"
	ErrorCodeNotInitialized   ErrorCode = "not_initialized"
	ErrorCodeNotFinished      ErrorCode = "not_finished"
	ErrorCodeAudioStop        ErrorCode = "audio_stop"
)

var (
	ErrPermissionDenied        = errors.New("microphone access denied")
	ErrNotInitialized          = errors.New("conversation not initialized")
	ErrConversationNotFinished = errors.New("conversation not finished")
)

// NetworkError wraps any failed backend call.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return e.Op + ": network error"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err carries a *NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// Conversation is the backend conversation bound to the widget session.
type Conversation struct {
	ID       string `json:"id,omitempty"`
	Finished bool   `json:"finished"`
}

func (c Conversation) Started() bool { return c.ID != "" }

// BubbleID is the handle returned when a chat bubble is created.
type BubbleID string

// UserBubble is a user turn as rendered in the chat.
type UserBubble struct {
	Text          string `json:"text"`
	Transcription string `json:"transcription,omitempty"`
	AudioRef      string `json:"audio,omitempty"`
}

// BotBubble is a bot turn; RichText may contain anchors.
type BotBubble struct {
	RichText string `json:"richText"`
}

// AudioClip is a finished recording, immutable once assembled.
type AudioClip struct {
	Data     []byte
	MIMEType string
	Seconds  int
}

func (c AudioClip) Empty() bool { return len(c.Data) == 0 }

func (c AudioClip) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Data)
}

// DataURL renders the clip so the webview can play it back.
func (c AudioClip) DataURL() string {
	if c.Empty() {
		return ""
	}
	mime := c.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + c.Base64()
}

// ConversationStart is the backend answer to a new conversation.
type ConversationStart struct {
	ConversationID string
	Greeting       string
}

// Reply is the backend answer to a user turn.
type Reply struct {
	Message       string
	Transcription string
	IsFinal       bool
}

// Export is the backend answer to a report request.
type Export struct {
	FileURL string
}

// SpeechTask is one pending narration.
type SpeechTask struct {
	Text      string
	Indicator BubbleID
}

// Status summarizes the widget runtime for the UI.
type Status struct {
	State          SessionState `json:"state"`
	Active         bool         `json:"active"`
	ElapsedSeconds int          `json:"elapsedSeconds"`
	ConversationID string       `json:"conversationId,omitempty"`
	Finished       bool         `json:"finished"`
	Speaking       bool         `json:"speaking"`
	Message        string       `json:"message,omitempty"`
}
