// Package vision describes camera frames for a walking user with Gemini.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-guide/internal/httpc"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"

	// FallbackText is spoken when a description cannot be produced.
	FallbackText = "Vision analysis encountered an error"
)

// DefaultPrompt asks for a navigation-first scene description.
const DefaultPrompt = `Describe this scene for a blind person who is walking.
Be concise and focus on immediate obstacles, people, and potential hazards directly ahead.
Mention distances if possible (e.g., 'a person is about 10 feet away').
Start your description with what is most important for navigation.
Example: 'Person walking towards you, about 5 feet away.'
Example: 'Stairs going down directly ahead.'
Example: 'Clear path ahead.'`

var (
	ErrNoAPIKey   = errors.New("vision: API key required")
	ErrEmptyFrame = errors.New("vision: empty frame")
	ErrNoResponse = errors.New("vision: no description returned")
)

// Describer turns a JPEG frame into text.
type Describer interface {
	Describe(ctx context.Context, jpeg []byte) (string, error)
}

// Gemini calls generateContent with the frame as inline data.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	prompt  string
	client  *http.Client
	logger  *slog.Logger
}

// GeminiOption configures Gemini.
type GeminiOption func(*Gemini)

func WithModel(m string) GeminiOption       { return func(g *Gemini) { g.model = m } }
func WithBaseURL(u string) GeminiOption     { return func(g *Gemini) { g.baseURL = strings.TrimRight(u, "/") } }
func WithPrompt(p string) GeminiOption      { return func(g *Gemini) { g.prompt = p } }
func WithLogger(l *slog.Logger) GeminiOption { return func(g *Gemini) { g.logger = l } }

// NewGemini creates a describer.
func NewGemini(apiKey string, timeout time.Duration, opts ...GeminiOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	g := &Gemini{
		apiKey:  apiKey,
		model:   DefaultModel,
		baseURL: DefaultBaseURL,
		prompt:  DefaultPrompt,
		client:  httpc.New(timeout),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "vision")
	return g, nil
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents []struct {
		Parts []part `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

// generateResponse is the subset of the Gemini response we read.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Describe implements Describer.
func (g *Gemini) Describe(ctx context.Context, jpeg []byte) (string, error) {
	if len(jpeg) == 0 {
		return "", ErrEmptyFrame
	}

	var body generateRequest
	body.Contents = make([]struct {
		Parts []part `json:"parts"`
	}, 1)
	body.Contents[0].Parts = []part{
		{Text: g.prompt},
		{InlineData: &inlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(jpeg)}},
	}
	body.GenerationConfig.Temperature = 0.7
	body.GenerationConfig.MaxOutputTokens = 1000

	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var result generateResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("vision: decode response (status %d): %w (body: %s)", resp.StatusCode, err, truncate(string(raw), 200))
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("vision: gemini error (status %d): %s", resp.StatusCode, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision: gemini status %d", resp.StatusCode)
	}

	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		text := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
		if text != "" {
			g.logger.Debug("frame described", "chars", len(text), "latency", time.Since(start))
			return text, nil
		}
	}
	return "", ErrNoResponse
}

// truncate shortens a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// Look captures a frame and describes it.
func Look(ctx context.Context, cam Provider, d Describer) (string, error) {
	frame, err := cam.CaptureFrame(ctx)
	if err != nil {
		return "", err
	}
	return d.Describe(ctx, frame)
}
