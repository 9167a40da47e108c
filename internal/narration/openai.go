package narration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig controls OpenAI speech synthesis.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Voice      string
	Player     string
	PlayerArgs []string
}

// OpenAINarrator synthesizes speech with the OpenAI audio API and plays the
// result through a player reading from stdin.
type OpenAINarrator struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAINarrator(cfg OpenAIConfig) *OpenAINarrator {
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceNova)
	}
	if strings.TrimSpace(cfg.Player) == "" {
		cfg.Player = "ffplay"
	}
	if len(cfg.PlayerArgs) == 0 && filepath.Base(cfg.Player) == "ffplay" {
		cfg.PlayerArgs = defaultFFplayArgs()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAINarrator{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

func defaultFFplayArgs() []string {
	return []string{"-nodisp", "-autoexit", "-loglevel", "error", "-"}
}

// PlayerCommand returns the player invocation fed with synthesized audio.
func (n *OpenAINarrator) PlayerCommand() []string {
	return append([]string{n.cfg.Player}, n.cfg.PlayerArgs...)
}

func (n *OpenAINarrator) Available() bool {
	if strings.TrimSpace(n.cfg.APIKey) == "" {
		return false
	}
	_, err := exec.LookPath(n.cfg.Player)
	return err == nil
}

func (n *OpenAINarrator) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(n.cfg.APIKey) == "" {
		return errors.New("openai api key is not configured")
	}

	audio, err := n.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(n.cfg.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(n.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer audio.Close()

	cmd := exec.CommandContext(ctx, n.cfg.Player, n.cfg.PlayerArgs...)
	cmd.Stdin = audio
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio player failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
