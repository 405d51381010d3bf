package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eleven-am/sightline/internal/faces"
	"github.com/eleven-am/sightline/internal/perception"
	"github.com/eleven-am/sightline/internal/shared"
	"gonum.org/v1/gonum/mat"
)

type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
	Log     *slog.Logger
}

// Client talks to the model sidecar. One client serves object detection,
// depth estimation, face embedding and OCR.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	log        *slog.Logger
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		log:        log.With("component", "inference"),
	}
}

type imageRequest struct {
	Image  string           `json:"image"`
	Width  int              `json:"width,omitempty"`
	Height int              `json:"height,omitempty"`
	Boxes  []perception.Box `json:"boxes,omitempty"`
}

type detectResponse struct {
	Detections []struct {
		Label string         `json:"label"`
		Box   perception.Box `json:"box"`
		Score float64        `json:"score"`
	} `json:"detections"`
}

type depthResponse struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

type embedResponse struct {
	Faces []struct {
		Box       perception.Box `json:"box"`
		Embedding []float64      `json:"embedding"`
	} `json:"faces"`
}

type ocrResponse struct {
	Text string `json:"text"`
}

func (c *Client) Detect(ctx context.Context, frame *perception.Frame) ([]perception.Detection, error) {
	var resp detectResponse
	if err := c.post(ctx, "/v1/detect", newImageRequest(frame, nil), &resp); err != nil {
		return nil, err
	}

	dets := make([]perception.Detection, 0, len(resp.Detections))
	for _, d := range resp.Detections {
		dets = append(dets, perception.Detection{Label: d.Label, Box: d.Box, Score: d.Score})
	}
	return perception.WithAreaFractions(dets, frame.Width, frame.Height), nil
}

func (c *Client) Estimate(ctx context.Context, frame *perception.Frame) (*mat.Dense, error) {
	var resp depthResponse
	if err := c.post(ctx, "/v1/depth", newImageRequest(frame, nil), &resp); err != nil {
		return nil, err
	}
	if resp.Rows <= 0 || resp.Cols <= 0 || len(resp.Data) != resp.Rows*resp.Cols {
		return nil, fmt.Errorf("depth map %dx%d with %d values", resp.Rows, resp.Cols, len(resp.Data))
	}
	return mat.NewDense(resp.Rows, resp.Cols, resp.Data), nil
}

func (c *Client) Embed(ctx context.Context, frame *perception.Frame) ([]faces.Face, error) {
	var resp embedResponse
	if err := c.post(ctx, "/v1/faces/embed", newImageRequest(frame, nil), &resp); err != nil {
		return nil, err
	}

	found := make([]faces.Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		found = append(found, faces.Face{Box: f.Box, Embedding: f.Embedding})
	}
	return found, nil
}

func (c *Client) Read(ctx context.Context, frame *perception.Frame, hints []perception.Box) (string, error) {
	var resp ocrResponse
	if err := c.post(ctx, "/v1/ocr", newImageRequest(frame, hints), &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func newImageRequest(frame *perception.Frame, hints []perception.Box) imageRequest {
	return imageRequest{
		Image:  base64.StdEncoding.EncodeToString(frame.Data),
		Width:  frame.Width,
		Height: frame.Height,
		Boxes:  hints,
	}
}

func (c *Client) post(ctx context.Context, path string, payload imageRequest, out any) error {
	if payload.Image == "" {
		return fmt.Errorf("%s: %w", path, shared.ErrNoFrame)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sidecar %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sidecar %s returned status %d: %s: %w",
			path, resp.StatusCode, strings.TrimSpace(string(msg)), shared.ErrUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	c.log.Debug("sidecar call", "path", path, "duration", time.Since(start))
	return nil
}
