package voice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
)

// fallbackTextLimit bounds text handed to the local facility; the local
// voice is a degraded path and long passages are cut hard.
const fallbackTextLimit = 200

// ExecSpeaker shells out to a local speech command such as `say` or
// `espeak`. Args may contain the placeholders {rate} and {text}; when no
// {text} placeholder is present the text is appended as the final argument.
type ExecSpeaker struct {
	Command string
	Args    []string
}

func NewExecSpeaker(command string, args ...string) (*ExecSpeaker, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, errors.New("local speech command is required")
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("local speech command %q not found: %w", command, err)
	}
	return &ExecSpeaker{Command: command, Args: args}, nil
}

// Speak starts the local command on a truncated copy of text and returns
// without waiting for it to finish. The process is reaped in the
// background; its exit status is logged and otherwise ignored.
func (s *ExecSpeaker) Speak(ctx context.Context, text string, rate float64) error {
	text = truncateRunes(strings.TrimSpace(text), fallbackTextLimit)
	if text == "" {
		return nil
	}
	if rate <= 0 {
		rate = 1.0
	}

	cmd := exec.CommandContext(ctx, s.Command, buildSpeakArgs(s.Args, text, rate)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start local speech: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("local speech exited: %v", err)
		}
	}()
	return nil
}

func buildSpeakArgs(template []string, text string, rate float64) []string {
	rateStr := strconv.FormatFloat(rate, 'f', -1, 64)
	args := make([]string, 0, len(template)+1)
	textPlaced := false
	for _, a := range template {
		a = strings.ReplaceAll(a, "{rate}", rateStr)
		if strings.Contains(a, "{text}") {
			a = strings.ReplaceAll(a, "{text}", text)
			textPlaced = true
		}
		args = append(args, a)
	}
	if !textPlaced {
		args = append(args, text)
	}
	return args
}

func truncateRunes(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
