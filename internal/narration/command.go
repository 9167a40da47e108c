package narration

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandNarrator speaks through a local TTS program such as espeak-ng.
// The text is passed as the last argument.
type CommandNarrator struct {
	command string
	args    []string
}

func NewCommandNarrator(command string, args []string) *CommandNarrator {
	if strings.TrimSpace(command) == "" {
		command = "espeak-ng"
		if len(args) == 0 {
			args = []string{"-v", "fr"}
		}
	}
	return &CommandNarrator{command: command, args: args}
}

func (n *CommandNarrator) Available() bool {
	_, err := exec.LookPath(n.command)
	return err == nil
}

func (n *CommandNarrator) Speak(ctx context.Context, text string) error {
	args := append(append([]string(nil), n.args...), text)
	cmd := exec.CommandContext(ctx, n.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("tts command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
