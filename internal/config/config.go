package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "TALKBOX_"

// Narration engines.
const (
	NarrationWebview = "webview"
	NarrationCommand = "command"
	NarrationOpenAI  = "openai"
)

// Config stores runtime configuration for the widget.
type Config struct {
	Backend   BackendConfig   `envPrefix:"BACKEND_"`
	Audio     AudioConfig     `envPrefix:"AUDIO_"`
	Recording RecordingConfig `envPrefix:"RECORDING_"`
	Narration NarrationConfig `envPrefix:"NARRATION_"`
	Links     LinksConfig     `envPrefix:"LINKS_"`
	Chat      ChatConfig      `envPrefix:"CHAT_"`
	Log       LogConfig       `envPrefix:"LOG_"`
}

type BackendConfig struct {
	BaseURL string        `env:"URL" envDefault:"http://localhost:5001"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type AudioConfig struct {
	RecorderCommand string `env:"FFMPEG_COMMAND" envDefault:"ffmpeg"`
	InputFormat     string `env:"INPUT_FORMAT" envDefault:"pulse"`
	InputDevice     string `env:"INPUT_DEVICE" envDefault:"default"`
	SampleRate      int    `env:"SAMPLE_RATE" envDefault:"16000"`
	Channels        int    `env:"CHANNELS" envDefault:"1"`
	ChunkSize       int    `env:"CHUNK_SIZE" envDefault:"4096"`
}

type RecordingConfig struct {
	MaxSeconds   int           `env:"MAX_SECONDS" envDefault:"60"`
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
}

type NarrationConfig struct {
	Engine      string   `env:"ENGINE" envDefault:"webview"`
	Language    string   `env:"LANGUAGE" envDefault:"fr-FR"`
	Command     string   `env:"COMMAND" envDefault:"espeak-ng"`
	CommandArgs []string `env:"COMMAND_ARGS" envDefault:"-v fr" envSeparator:" "`

	OpenAIAPIKey  string   `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string   `env:"OPENAI_BASE_URL"`
	OpenAIModel   string   `env:"OPENAI_MODEL" envDefault:"tts-1"`
	OpenAIVoice   string   `env:"OPENAI_VOICE" envDefault:"nova"`
	Player        string   `env:"PLAYER" envDefault:"ffplay"`
	PlayerArgs    []string `env:"PLAYER_ARGS" envDefault:"-nodisp -autoexit -loglevel error -" envSeparator:" "`
}

type LinksConfig struct {
	RulesPath string   `env:"RULES_FILE"`
	Origins   []string `env:"ORIGINS" envSeparator:";"`
	Label     string   `env:"LABEL"`
	LoopLimit int      `env:"LOOP_LIMIT" envDefault:"30"`
}

type ChatConfig struct {
	ReplyDelay      time.Duration `env:"REPLY_DELAY" envDefault:"500ms"`
	NarrateGreeting bool          `env:"NARRATE_GREETING" envDefault:"false"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"console"`
	File   string `env:"FILE"`
}

// Load resolves configuration from an optional dotenv file, the environment
// and defaults. Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := loadDotenv(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Narration.OpenAIAPIKey == "" {
		cfg.Narration.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if cfg.Links.RulesPath == "" {
		cfg.Links.RulesPath = defaultLinkRulesPath()
	}

	cfg.Narration.Engine = strings.ToLower(strings.TrimSpace(cfg.Narration.Engine))
	switch cfg.Narration.Engine {
	case NarrationWebview, NarrationCommand, NarrationOpenAI:
	case "":
		cfg.Narration.Engine = NarrationWebview
	default:
		return Config{}, fmt.Errorf("unsupported narration engine %q", cfg.Narration.Engine)
	}

	clamp(&cfg)
	return cfg, nil
}

func loadDotenv() error {
	path := strings.TrimSpace(os.Getenv(envPrefix + "ENV_FILE"))
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %q: %w", path, err)
		}
		return nil
	}

	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func defaultLinkRulesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "talkbox", "links.rules")
}

func clamp(cfg *Config) {
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Recording.MaxSeconds <= 0 {
		cfg.Recording.MaxSeconds = 60
	}
	if cfg.Recording.TickInterval <= 0 {
		cfg.Recording.TickInterval = time.Second
	}
	if cfg.Links.LoopLimit <= 0 {
		cfg.Links.LoopLimit = 30
	}
	if cfg.Chat.ReplyDelay < 0 {
		cfg.Chat.ReplyDelay = 0
	}
}
