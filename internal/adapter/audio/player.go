// Package audio plays announcement audio through an external player process.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
)

// ErrNoPlayer means no usable audio player is configured.
var ErrNoPlayer = errors.New("no audio player available")

// Player pipes each announcement into a fresh run of a player command reading
// audio from stdin, such as "aplay -q -" or "ffplay -nodisp -autoexit -".
type Player struct {
	name string
	args []string

	ctx    context.Context
	cancel context.CancelFunc
}

// New resolves cmdline to a Player. When it cannot, it returns a Silent sink along
// with an error wrapping ErrNoPlayer so the caller can raise NO_AUDIO_CONTEXT.
func New(cmdline string) (domain.AudioSink, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return Silent{}, fmt.Errorf("AUDIO_PLAYER_CMD is empty: %w", ErrNoPlayer)
	}

	path, err := exec.LookPath(fields[0])
	if err != nil {
		return Silent{}, fmt.Errorf("audio player %q: %w: %w", fields[0], ErrNoPlayer, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Player{name: path, args: fields[1:], ctx: ctx, cancel: cancel}, nil
}

// Play implements domain.AudioSink.
func (p *Player) Play(audio []byte) <-chan error {
	done := make(chan error, 1)
	go func() {
		cmd := exec.CommandContext(p.ctx, p.name, p.args...)
		cmd.Stdin = bytes.NewReader(audio)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			done <- fmt.Errorf("audio player: %w: %s", err, strings.TrimSpace(stderr.String()))
			return
		}
		done <- nil
	}()
	return done
}

// Close kills any playback in progress.
func (p *Player) Close() error {
	p.cancel()
	return nil
}

// Silent completes every announcement immediately.
type Silent struct{}

func (Silent) Play([]byte) <-chan error {
	done := make(chan error, 1)
	done <- nil
	return done
}
