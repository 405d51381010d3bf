package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/url"

	"github.com/eleven-am/sightline/internal/perception"
	"github.com/eleven-am/sightline/internal/shared"
)

type Stream interface {
	// Read blocks until the next frame is available.
	Read(ctx context.Context) (*perception.Frame, error)
	Close() error
}

type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// NewSource picks a source implementation from the URL scheme: ws and wss
// carry one encoded image per binary message, http and https are MJPEG.
func NewSource(rawURL string) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("camera url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return NewWebSocketSource(rawURL), nil
	case "http", "https":
		return NewMJPEGSource(rawURL), nil
	default:
		return nil, fmt.Errorf("camera url scheme %q: %w", u.Scheme, shared.ErrInvalidConfig)
	}
}

// decodeFrame wraps encoded image bytes in a Frame, reading only the header
// for its dimensions.
func decodeFrame(data []byte) (*perception.Frame, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame header: %w", err)
	}
	return &perception.Frame{Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}
