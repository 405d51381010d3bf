package camera

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/eleven-am/sightline/internal/perception"
)

const maxFrameBytes = 8 << 20

// MJPEGSource reads a multipart/x-mixed-replace stream as served by IP
// webcam apps.
type MJPEGSource struct {
	url    string
	client *http.Client
}

func NewMJPEGSource(url string) *MJPEGSource {
	return &MJPEGSource{url: url, client: &http.Client{}}
}

func (s *MJPEGSource) Open(ctx context.Context) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open camera stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("camera stream content type %q is not multipart", resp.Header.Get("Content-Type"))
	}

	return &mjpegStream{
		body:   resp.Body,
		reader: multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

type mjpegStream struct {
	body   io.ReadCloser
	reader *multipart.Reader
}

func (s *mjpegStream) Read(ctx context.Context) (*perception.Frame, error) {
	part, err := s.reader.NextPart()
	if err != nil {
		return nil, fmt.Errorf("next camera part: %w", err)
	}
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, maxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("read camera part: %w", err)
	}
	return decodeFrame(data)
}

func (s *mjpegStream) Close() error {
	return s.body.Close()
}
