package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eleven-am/sightline/internal/shared"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestNewSource_SelectsByScheme(t *testing.T) {
	src, err := NewSource("ws://glasses.local/camera")
	require.NoError(t, err)
	assert.IsType(t, &WebSocketSource{}, src)

	src, err = NewSource("http://192.168.1.20:8080/video")
	require.NoError(t, err)
	assert.IsType(t, &MJPEGSource{}, src)

	_, err = NewSource("rtsp://camera")
	assert.True(t, errors.Is(err, shared.ErrInvalidConfig))
}

func TestMJPEGSource_ReadsParts(t *testing.T) {
	img := encodedImage(t, 8, 6)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		for i := 0; i < 2; i++ {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/png\r\nContent-Length: %d\r\n\r\n", len(img))
			_, _ = w.Write(img)
			fmt.Fprint(w, "\r\n")
		}
		fmt.Fprint(w, "--frame--\r\n")
	}))
	defer srv.Close()

	stream, err := NewMJPEGSource(srv.URL).Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	for i := 0; i < 2; i++ {
		frame, err := stream.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 8, frame.Width)
		assert.Equal(t, 6, frame.Height)
		assert.Equal(t, img, frame.Data)
	}

	_, err = stream.Read(context.Background())
	assert.Error(t, err)
}

func TestMJPEGSource_RejectsNonMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	_, err := NewMJPEGSource(srv.URL).Open(context.Background())
	assert.Error(t, err)
}

func TestWebSocketSource_ReadsBinaryFrames(t *testing.T) {
	img := encodedImage(t, 4, 3)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"camera"}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, img)
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte("not an image"))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	src := NewWebSocketSource("ws" + strings.TrimPrefix(srv.URL, "http"))
	stream, err := src.Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	frame, err := stream.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, frame.Width)
	assert.Equal(t, 3, frame.Height)

	_, err = stream.Read(context.Background())
	assert.Error(t, err)
}
