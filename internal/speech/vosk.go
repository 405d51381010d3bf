package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/sightline/internal/audio"
	"github.com/gorilla/websocket"
)

type VoskConfig struct {
	URL         string
	SampleRate  int
	DialTimeout time.Duration
	Log         *slog.Logger
}

// VoskClient streams PCM to a Vosk recognition server over a websocket. Each
// binary chunk is answered with either a partial or a final result. A broken
// connection is redialled on the next Accept.
type VoskClient struct {
	url        string
	sampleRate int
	dialer     *websocket.Dialer
	log        *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

type voskConfigMessage struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
	} `json:"config"`
}

type voskResult struct {
	Text    *string `json:"text"`
	Partial string  `json:"partial"`
}

func NewVoskClient(cfg VoskConfig) *VoskClient {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.SampleRate
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &VoskClient{
		url:        cfg.URL,
		sampleRate: cfg.SampleRate,
		dialer:     &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		log:        cfg.Log.With("component", "vosk"),
	}
}

func (c *VoskClient) connect(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial vosk: %w", err)
	}

	var msg voskConfigMessage
	msg.Config.SampleRate = c.sampleRate
	if err := conn.WriteJSON(msg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send vosk config: %w", err)
	}

	c.log.Info("connected to recognizer", "url", c.url, "sample_rate", c.sampleRate)
	c.conn = conn
	return conn, nil
}

// Accept feeds one PCM buffer and returns the recognizer's answer. final is
// true when the text is a completed utterance.
func (c *VoskClient) Accept(ctx context.Context, pcm []byte) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connect(ctx)
	if err != nil {
		return "", false, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		c.dropLocked()
		return "", false, fmt.Errorf("send audio: %w", err)
	}

	var res voskResult
	if err := conn.ReadJSON(&res); err != nil {
		c.dropLocked()
		return "", false, fmt.Errorf("read result: %w", err)
	}

	if res.Text != nil {
		return strings.TrimSpace(*res.Text), true, nil
	}
	return strings.TrimSpace(res.Partial), false, nil
}

func (c *VoskClient) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close flushes the recognizer and closes the connection.
func (c *VoskClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.dropLocked()
	return nil
}
