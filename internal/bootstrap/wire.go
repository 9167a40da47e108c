package bootstrap

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"talkbox/internal/audio"
	"talkbox/internal/backend"
	"talkbox/internal/config"
	"talkbox/internal/links"
	"talkbox/internal/logging"
	"talkbox/internal/narration"
	"talkbox/internal/ports"
	"talkbox/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Chat   *usecase.ChatSession
	Config config.Config
	Logger zerolog.Logger
	// Webview is set when narration runs in the webview; the frontend
	// reports utterance completion to it.
	Webview *narration.WebviewNarrator

	logCloser io.Closer
}

// Close releases the session and the log file.
func (s Services) Close() error {
	if s.Chat != nil {
		s.Chat.Close()
	}
	if s.logCloser != nil {
		return s.logCloser.Close()
	}
	return nil
}

// Build wires all dependencies for the current runtime.
func Build(view ports.ChatView, emit narration.Emitter) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}, os.Stderr)
	if err != nil {
		return Services{}, err
	}

	rewriter, err := links.NewRewriter(links.Config{
		RulesPath: cfg.Links.RulesPath,
		Origins:   cfg.Links.Origins,
		Label:     cfg.Links.Label,
		LoopLimit: cfg.Links.LoopLimit,
	})
	if err != nil {
		_ = logCloser.Close()
		return Services{}, err
	}

	narrator, webview, err := buildNarrator(cfg.Narration, emit)
	if err != nil {
		_ = logCloser.Close()
		return Services{}, err
	}
	if !narrator.Available() {
		logger.Warn().Str("engine", cfg.Narration.Engine).Msg("narration engine unavailable, replies stay silent")
	}
	if openAI, ok := narrator.(*narration.OpenAINarrator); ok {
		logger.Debug().Strs("player", openAI.PlayerCommand()).Msg("openai narration player")
	}

	chatCfg := usecase.ChatConfig{
		ReplyDelay:      cfg.Chat.ReplyDelay,
		NarrateGreeting: cfg.Chat.NarrateGreeting,
		Messages:        usecase.DefaultMessages(),
		Recorder: usecase.RecorderConfig{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize:    cfg.Audio.ChunkSize,
			MaxSeconds:   cfg.Recording.MaxSeconds,
			TickInterval: cfg.Recording.TickInterval,
		},
	}

	chat := usecase.NewChatSession(usecase.ChatDeps{
		Backend: backend.NewClient(backend.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.Timeout,
		}),
		Capture:   audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		Encoder:   audio.WAVEncoder{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels},
		Narrator:  narrator,
		View:      view,
		Formatter: rewriter,
		Normalize: narration.Normalize,
		Logger:    logger,
	}, chatCfg)

	return Services{
		Chat:      chat,
		Config:    cfg,
		Logger:    logger,
		Webview:   webview,
		logCloser: logCloser,
	}, nil
}

func buildNarrator(cfg config.NarrationConfig, emit narration.Emitter) (ports.Narrator, *narration.WebviewNarrator, error) {
	switch cfg.Engine {
	case config.NarrationWebview, "":
		webview := narration.NewWebviewNarrator(emit, cfg.Language)
		return webview, webview, nil
	case config.NarrationCommand:
		return narration.NewCommandNarrator(cfg.Command, cfg.CommandArgs), nil, nil
	case config.NarrationOpenAI:
		return narration.NewOpenAINarrator(narration.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			Voice:      cfg.OpenAIVoice,
			Player:     cfg.Player,
			PlayerArgs: cfg.PlayerArgs,
		}), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported narration engine %q", cfg.Engine)
	}
}
