package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teslashibe/go-guide/internal/httpc"
)

// Provider captures camera frames.
type Provider interface {
	CaptureFrame(ctx context.Context) ([]byte, error) // Returns JPEG image data
}

// HTTPCamera fetches single JPEG frames from a capture endpoint, such as
// http://<esp32-cam>/capture.
type HTTPCamera struct {
	URL    string
	client *http.Client
}

// NewHTTPCamera returns a camera reading from url.
func NewHTTPCamera(url string, timeout time.Duration) *HTTPCamera {
	return &HTTPCamera{URL: url, client: httpc.New(timeout)}
}

// CaptureFrame implements Provider.
func (c *HTTPCamera) CaptureFrame(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision: capture: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision: capture: status %d", resp.StatusCode)
	}
	frame, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("vision: capture: %w", err)
	}
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	return frame, nil
}
