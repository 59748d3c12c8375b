package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-guide/internal/httpc"
)

const (
	openAISpeechURL = "https://api.openai.com/v1/audio/speech"
	backendCloud    = "openai"

	// ModelTTS1 is the low-latency OpenAI speech model.
	ModelTTS1 = "tts-1"

	// VoiceShimmer is the OpenAI voice used when the configured voice is a
	// local one such as "Alex".
	VoiceShimmer = "shimmer"
)

var openAIVoices = map[string]bool{
	"alloy": true, "echo": true, "fable": true,
	"onyx": true, "nova": true, "shimmer": true,
}

// Cloud synthesizes speech with the OpenAI speech endpoint and hands the
// resulting MP3 to a Player.
type Cloud struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewCloud creates a cloud backend. An API key and a Player are required.
func NewCloud(opts ...Option) (*Cloud, error) {
	cfg := DefaultConfig()
	cfg.Model = ModelTTS1
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Player == nil {
		return nil, wrap(backendCloud, fmt.Errorf("%w: audio player required", ErrNoBackend))
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAISpeechURL
	}

	return &Cloud{
		config:  cfg,
		client:  httpc.New(cfg.Timeout),
		logger:  cfg.Logger.With("component", "speech.openai"),
		baseURL: baseURL,
	}, nil
}

// Speak synthesizes text and blocks until the player finishes.
func (c *Cloud) Speak(ctx context.Context, text string, voice Voice) error {
	start := time.Now()
	audio, err := c.synthesize(ctx, text, c.config.voiceOr(voice))
	if err != nil {
		return err
	}

	c.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return wrap(backendCloud, c.config.Player.Play(ctx, audio))
}

func (c *Cloud) synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	name := voice.Name
	if !openAIVoices[name] {
		name = VoiceShimmer
	}

	payload := map[string]interface{}{
		"model": c.config.Model,
		"voice": name,
		"input": text,
	}
	// OpenAI speed is relative to ~180 wpm, clamped to its accepted range.
	if voice.Rate > 0 {
		speed := float64(voice.Rate) / 180
		if speed < 0.25 {
			speed = 0.25
		}
		if speed > 4 {
			speed = 4
		}
		payload["speed"] = speed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, wrap(backendCloud, fmt.Errorf("marshal payload: %w", err))
	}

	resp, err := c.doWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrap(backendCloud, fmt.Errorf("read response: %w", err))
	}
	return audio, nil
}

// doWithRetry posts body, retrying transport errors and retryable statuses.
func (c *Cloud) doWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, wrap(backendCloud, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = wrap(backendCloud, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = c.parseError(resp)
			resp.Body.Close()
			c.logger.Warn("retrying request", "attempt", attempt+1, "status", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads an OpenAI error envelope, falling back to the raw body.
func (c *Cloud) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{StatusCode: resp.StatusCode, Message: message, Backend: backendCloud}
}

// Name implements Synthesizer.
func (c *Cloud) Name() string { return backendCloud }

var _ Synthesizer = (*Cloud)(nil)
