package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"talkbox/internal/bootstrap"
	"talkbox/internal/config"
	"talkbox/internal/domain"
	"talkbox/internal/narration"
	"talkbox/internal/usecase"
)

const (
	eventUserBubble        = "talkbox:user-bubble"
	eventUserBubbleReplace = "talkbox:user-bubble-replace"
	eventBotBubble         = "talkbox:bot-bubble"
	eventSpeaking          = "talkbox:speaking"
	eventRecording         = "talkbox:recording"
	eventFinished          = "talkbox:finished"
	eventExport            = "talkbox:export"
	eventAlert             = "talkbox:alert"
)

// App is the Wails application root and the chat view of the widget.
type App struct {
	ctx context.Context

	// emitter and opener replace the Wails runtime in tests.
	emitter narration.Emitter
	opener  func(url string)

	services bootstrap.Services
	chat     *usecase.ChatSession
	webview  *narration.WebviewNarrator
	cfg      config.Config
	bootErr  error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a.emit)
	if err != nil {
		a.bootErr = err
		a.Alert(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.chat = services.Chat
	a.webview = services.Webview
	a.RecordingStateChanged(domain.SessionStateIdle, domain.SessionReasonMicCold, 0)

	go func() {
		if err := a.chat.Init(ctx); err != nil {
			a.services.Logger.Warn().Err(err).Msg("conversation not started")
		}
	}()
}

func (a *App) shutdown(_ context.Context) {
	if a.bootErr != nil {
		return
	}
	logger := a.services.Logger
	if err := a.services.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
		return
	}
	logger.Debug().Msg("shutdown complete")
}

// SendText submits a typed message. Failures are shown in the chat.
func (a *App) SendText(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	_ = a.chat.SendText(a.ctx, text)
	return nil
}

// StartRecording opens the microphone.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	_ = a.chat.StartRecording(a.ctx)
	return a.chat.Status(), nil
}

// StopRecording stops the microphone and sends the recorded message.
func (a *App) StopRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.chat.StopRecording(a.ctx); err != nil {
		a.Alert(domain.ErrorCodeAudioStop, err.Error())
	}
	return a.chat.Status(), nil
}

// ExportConversation requests the PDF report of a finished conversation.
func (a *App) ExportConversation() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	_, _ = a.chat.Export(a.ctx)
	return nil
}

// NarrationFinished is called by the frontend when an utterance ends.
func (a *App) NarrationFinished(id string) bool {
	if a.webview == nil {
		return false
	}
	return a.webview.Finish(id)
}

// ReportNarrationSupport tells the backend whether the webview can speak.
func (a *App) ReportNarrationSupport(supported bool) {
	if a.webview != nil {
		a.webview.SetSupported(supported)
	}
}

// GetStatus returns the current widget status.
func (a *App) GetStatus() domain.Status {
	if a.chat == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.chat.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"backend":          a.cfg.Backend.BaseURL,
		"narration":        a.cfg.Narration.Engine,
		"language":         a.cfg.Narration.Language,
		"maxSeconds":       strconv.Itoa(a.cfg.Recording.MaxSeconds),
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"linkRulesFile":    a.cfg.Links.RulesPath,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.chat == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// AppendUserBubble shows a user turn and returns its handle.
func (a *App) AppendUserBubble(bubble domain.UserBubble) domain.BubbleID {
	id := domain.BubbleID(uuid.NewString())
	a.emit(eventUserBubble, userBubblePayload(id, bubble))
	return id
}

// ReplaceUserBubble updates a user turn in place.
func (a *App) ReplaceUserBubble(id domain.BubbleID, bubble domain.UserBubble) {
	a.emit(eventUserBubbleReplace, userBubblePayload(id, bubble))
}

// AppendBotBubble shows a bot turn. RichText is already escaped.
func (a *App) AppendBotBubble(bubble domain.BotBubble) domain.BubbleID {
	id := domain.BubbleID(uuid.NewString())
	a.emit(eventBotBubble, map[string]string{
		"id":   string(id),
		"html": bubble.RichText,
	})
	return id
}

func (a *App) SetSpeaking(id domain.BubbleID, speaking bool) {
	a.emit(eventSpeaking, map[string]any{
		"id":       string(id),
		"speaking": speaking,
	})
}

func (a *App) RecordingStateChanged(state domain.SessionState, reason domain.SessionStateReason, elapsedSeconds int) {
	a.emit(eventRecording, map[string]any{
		"state":   string(state),
		"reason":  string(reason),
		"elapsed": elapsedSeconds,
		"timer":   formatElapsed(elapsedSeconds),
		"message": recordingReasonMessage(reason),
	})
}

func (a *App) ConversationFinished(conversationID string) {
	a.emit(eventFinished, map[string]string{"conversationId": conversationID})
}

func (a *App) ExportStateChanged(busy bool) {
	a.emit(eventExport, map[string]any{
		"busy":  busy,
		"label": exportLabel(busy),
	})
}

// Alert raises a blocking notice in the UI.
func (a *App) Alert(code domain.ErrorCode, message string) {
	a.emit(eventAlert, map[string]string{
		"code":    string(code),
		"title":   errorTitle(code),
		"message": message,
	})
}

func (a *App) OpenURL(url string) {
	if a.opener != nil {
		a.opener(url)
		return
	}
	if a.ctx == nil {
		return
	}
	runtime.BrowserOpenURL(a.ctx, url)
}

func (a *App) emit(event string, payload any) {
	if a.emitter != nil {
		a.emitter(event, payload)
		return
	}
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, event, payload)
}

func userBubblePayload(id domain.BubbleID, bubble domain.UserBubble) map[string]string {
	return map[string]string{
		"id":            string(id),
		"text":          bubble.Text,
		"transcription": bubble.Transcription,
		"audio":         bubble.AudioRef,
	}
}

func formatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func recordingReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonMicCold:
		return "Micro prêt"
	case domain.SessionReasonRecordingStarted, domain.SessionReasonRecordingTick:
		return "Enregistrement en cours..."
	case domain.SessionReasonRecordingStopped:
		return "Enregistrement terminé"
	case domain.SessionReasonMaxDuration:
		return "Durée maximale atteinte"
	case domain.SessionReasonRecordingDiscarded:
		return "Enregistrement annulé"
	case domain.SessionReasonNoAudio:
		return "Aucun son enregistré"
	default:
		return ""
	}
}

func exportLabel(busy bool) string {
	if busy {
		return "Génération en cours..."
	}
	return "Générer PDF"
}

func errorTitle(code domain.ErrorCode) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Démarrage impossible"
	case domain.ErrorCodePermissionDenied:
		return "Microphone inaccessible"
	case domain.ErrorCodeNetwork:
		return "Erreur réseau"
	case domain.ErrorCodeNotInitialized:
		return "Conversation non initialisée"
	case domain.ErrorCodeNotFinished:
		return "Conversation en cours"
	case domain.ErrorCodeAudioStop:
		return "Arrêt du micro"
	default:
		return "Erreur"
	}
}
