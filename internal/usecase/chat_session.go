package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"talkbox/internal/domain"
	"talkbox/internal/ports"
)

// Messages holds the user-facing texts of the widget.
type Messages struct {
	InitFailed       string
	NotInitialized   string
	TextFailed       string
	AudioFailed      string
	ExportFailed     string
	ExportReady      string
	ExportNotReady   string
	VoicePlaceholder string
	MicDenied        string
}

// DefaultMessages returns the French texts the widget ships with.
func DefaultMessages() Messages {
	return Messages{
		InitFailed:       "Erreur lors de l'initialisation de la conversation. Veuillez réessayer.",
		NotInitialized:   "Conversation non initialisée. Veuillez attendre...",
		TextFailed:       "Erreur lors de l'envoi du message. Veuillez réessayer.",
		AudioFailed:      "Erreur lors de l'envoi du message audio. Veuillez réessayer.",
		ExportFailed:     "Erreur lors de la génération du PDF. Veuillez réessayer.",
		ExportReady:      "Le PDF a été généré avec succès. Vous pouvez le télécharger depuis votre espace personnel.",
		ExportNotReady:   "La conversation n'est pas terminée ou non initialisée.",
		VoicePlaceholder: "🎤 Message vocal envoyé",
		MicDenied:        "Impossible d'accéder au microphone. Veuillez vérifier les permissions.",
	}
}

// ChatConfig controls conversation behavior.
type ChatConfig struct {
	UserIDPrefix    string
	ReplyDelay      time.Duration
	NarrateGreeting bool
	Messages        Messages
	Recorder        RecorderConfig
}

// ChatDeps are the collaborators of a chat session.
type ChatDeps struct {
	Backend   ports.ConversationBackend
	Capture   ports.AudioCapture
	Encoder   ports.ClipEncoder
	Narrator  ports.Narrator
	View      ports.ChatView
	Formatter ports.ReplyFormatter
	Normalize func(string) string
	Logger    zerolog.Logger
}

// ChatSession owns one widget conversation: its id, completion flag,
// recording session and speech queue.
type ChatSession struct {
	backend   ports.ConversationBackend
	view      ports.ChatView
	formatter ports.ReplyFormatter
	speech    *SpeechQueue
	recorder  *Recorder
	cfg       ChatConfig
	logger    zerolog.Logger
	now       func() time.Time

	mu           sync.Mutex
	conversation domain.Conversation
	exporting    bool
}

func NewChatSession(deps ChatDeps, cfg ChatConfig) *ChatSession {
	if cfg.UserIDPrefix == "" {
		cfg.UserIDPrefix = "web-user-"
	}
	if cfg.Messages == (Messages{}) {
		cfg.Messages = DefaultMessages()
	}
	if cfg.ReplyDelay < 0 {
		cfg.ReplyDelay = 0
	}

	s := &ChatSession{
		backend:   deps.Backend,
		view:      deps.View,
		formatter: deps.Formatter,
		cfg:       cfg,
		logger:    deps.Logger.With().Str("component", "chat").Logger(),
		now:       time.Now,
	}
	s.speech = NewSpeechQueue(deps.Narrator, deps.View, deps.Normalize, deps.Logger)
	s.recorder = NewRecorder(deps.Capture, deps.Encoder, deps.View, s.handleClip, cfg.Recorder, deps.Logger)
	return s
}

// Init starts a backend conversation and shows its greeting.
func (s *ChatSession) Init(ctx context.Context) error {
	userID := fmt.Sprintf("%s%d", s.cfg.UserIDPrefix, s.now().UnixMilli())
	start, err := s.backend.StartConversation(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to start conversation")
		s.botNotice(s.cfg.Messages.InitFailed)
		return err
	}

	s.mu.Lock()
	s.conversation = domain.Conversation{ID: start.ConversationID}
	s.mu.Unlock()

	s.logger.Info().Str("conversationId", start.ConversationID).Msg("conversation started")
	bubble := s.view.AppendBotBubble(domain.BotBubble{RichText: s.format(start.Greeting)})
	if s.cfg.NarrateGreeting {
		s.speech.Enqueue(s.format(start.Greeting), bubble)
	}
	return nil
}

// SendText submits a typed user turn.
func (s *ChatSession) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.view.AppendUserBubble(domain.UserBubble{Text: text})

	conversationID, ok := s.conversationID()
	if !ok {
		s.botNotice(s.cfg.Messages.NotInitialized)
		return domain.ErrNotInitialized
	}

	reply, err := s.backend.SendText(ctx, conversationID, text)
	if err != nil {
		s.logger.Error().Err(err).Str("conversationId", conversationID).Msg("failed to send text")
		s.botNotice(s.cfg.Messages.TextFailed)
		return err
	}

	s.deliverReply(conversationID, reply)
	return nil
}

// SendAudio submits a recorded user turn.
func (s *ChatSession) SendAudio(ctx context.Context, clip domain.AudioClip) error {
	conversationID, ok := s.conversationID()
	if !ok {
		s.botNotice(s.cfg.Messages.NotInitialized)
		return domain.ErrNotInitialized
	}

	audioRef := clip.DataURL()
	placeholder := s.view.AppendUserBubble(domain.UserBubble{
		Text:     s.cfg.Messages.VoicePlaceholder,
		AudioRef: audioRef,
	})

	reply, err := s.backend.SendAudio(ctx, conversationID, clip.Data)
	if err != nil {
		s.logger.Error().Err(err).Str("conversationId", conversationID).Msg("failed to send audio")
		s.botNotice(s.cfg.Messages.AudioFailed)
		return err
	}

	if reply.Transcription != "" {
		s.view.ReplaceUserBubble(placeholder, domain.UserBubble{
			Text:     reply.Transcription,
			AudioRef: audioRef,
		})
	}

	if s.cfg.ReplyDelay > 0 {
		timer := time.NewTimer(s.cfg.ReplyDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	s.deliverReply(conversationID, reply)
	return nil
}

// Export requests the conversation report once the conversation is finished.
func (s *ChatSession) Export(ctx context.Context) (domain.Export, error) {
	s.mu.Lock()
	conversation := s.conversation
	if !conversation.Started() || !conversation.Finished {
		s.mu.Unlock()
		s.view.Alert(domain.ErrorCodeNotFinished, s.cfg.Messages.ExportNotReady)
		return domain.Export{}, domain.ErrConversationNotFinished
	}
	if s.exporting {
		s.mu.Unlock()
		return domain.Export{}, nil
	}
	s.exporting = true
	s.mu.Unlock()

	s.view.ExportStateChanged(true)
	defer func() {
		s.mu.Lock()
		s.exporting = false
		s.mu.Unlock()
		s.view.ExportStateChanged(false)
	}()

	export, err := s.backend.RequestExport(ctx, conversation.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("conversationId", conversation.ID).Msg("failed to export conversation")
		s.botNotice(s.cfg.Messages.ExportFailed)
		return domain.Export{}, err
	}

	if export.FileURL != "" {
		if s.formatter != nil {
			export.FileURL = s.formatter.RewriteURL(export.FileURL)
		}
		s.view.OpenURL(export.FileURL)
	} else {
		s.botNotice(s.cfg.Messages.ExportReady)
	}
	return export, nil
}

// StartRecording opens the microphone; a refusal is shown to the user.
func (s *ChatSession) StartRecording(ctx context.Context) error {
	if err := s.recorder.Start(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("microphone unavailable")
		code := domain.ErrorCodePermissionDenied
		if !errors.Is(err, domain.ErrPermissionDenied) {
			code = domain.ErrorCodeStartup
		}
		s.view.Alert(code, s.cfg.Messages.MicDenied)
		return err
	}
	return nil
}

// StopRecording ends the recording, which sends the clip.
func (s *ChatSession) StopRecording(ctx context.Context) error {
	return s.recorder.Stop(ctx)
}

// Status summarizes recording, narration and conversation state.
func (s *ChatSession) Status() domain.Status {
	state, elapsed := s.recorder.Status()

	s.mu.Lock()
	conversation := s.conversation
	s.mu.Unlock()

	return domain.Status{
		State:          state,
		Active:         state != domain.SessionStateIdle,
		ElapsedSeconds: elapsed,
		ConversationID: conversation.ID,
		Finished:       conversation.Finished,
		Speaking:       s.speech.Speaking(),
	}
}

// Conversation returns a copy of the current conversation.
func (s *ChatSession) Conversation() domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation
}

// Speech exposes the narration queue.
func (s *ChatSession) Speech() *SpeechQueue {
	return s.speech
}

// Close tears the session down: the microphone is released and narration stops.
func (s *ChatSession) Close() {
	if err := s.recorder.Abort(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to abort recording")
	}
	s.speech.Close()
}

func (s *ChatSession) handleClip(ctx context.Context, clip domain.AudioClip) {
	if err := s.SendAudio(ctx, clip); err != nil {
		s.logger.Debug().Err(err).Msg("audio turn not delivered")
	}
}

func (s *ChatSession) deliverReply(conversationID string, reply domain.Reply) {
	richText := s.format(reply.Message)
	bubble := s.view.AppendBotBubble(domain.BotBubble{RichText: richText})
	s.speech.Enqueue(richText, bubble)

	if reply.IsFinal {
		s.markFinished(conversationID)
	}
}

func (s *ChatSession) markFinished(conversationID string) {
	s.mu.Lock()
	if s.conversation.ID != conversationID || s.conversation.Finished {
		s.mu.Unlock()
		return
	}
	s.conversation.Finished = true
	s.mu.Unlock()

	s.logger.Info().Str("conversationId", conversationID).Msg("conversation finished")
	s.view.ConversationFinished(conversationID)
}

func (s *ChatSession) conversationID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.ID, s.conversation.Started()
}

func (s *ChatSession) botNotice(text string) {
	s.view.AppendBotBubble(domain.BotBubble{RichText: s.format(text)})
}

func (s *ChatSession) format(text string) string {
	if s.formatter == nil {
		return text
	}
	return s.formatter.Format(text)
}
