package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/eleven-am/sightline/internal/perception"
	"github.com/gorilla/websocket"
)

type WebSocketSource struct {
	url    string
	dialer *websocket.Dialer
}

func NewWebSocketSource(url string) *WebSocketSource {
	return &WebSocketSource{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
	}
}

func (s *WebSocketSource) Open(ctx context.Context) (Stream, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial camera: %w", err)
	}
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Read(ctx context.Context) (*perception.Frame, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}
	// A silent camera would otherwise hold ReadMessage past cancellation.
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read camera frame: %w", err)
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		return decodeFrame(data)
	}
}

func (s *wsStream) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
