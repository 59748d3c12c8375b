package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Player plays an encoded audio clip and returns when playback finishes.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// CommandPlayer pipes audio into an external player's stdin.
type CommandPlayer struct {
	Path string
	Args []string
}

// DefaultPlayer returns the first stdin-capable player on PATH, trying
// ffplay and then mpg123.
func DefaultPlayer() (*CommandPlayer, error) {
	candidates := []CommandPlayer{
		{Path: "ffplay", Args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-"}},
		{Path: "mpg123", Args: []string{"-q", "-"}},
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c.Path); err == nil {
			c.Path = path
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: no audio player (ffplay, mpg123) on PATH", ErrNoBackend)
}

// Play runs the player with audio on stdin. Cancelling ctx kills it.
func (p *CommandPlayer) Play(ctx context.Context, audio []byte) error {
	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	cmd.Stdin = bytes.NewReader(audio)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("player %s: %w: %s", p.Path, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

var _ Player = (*CommandPlayer)(nil)
