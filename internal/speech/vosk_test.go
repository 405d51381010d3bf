package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func voskServer(t *testing.T, replies []string) (*httptest.Server, chan int) {
	t.Helper()
	rates := make(chan int, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var cfg voskConfigMessage
		if err := conn.ReadJSON(&cfg); err != nil {
			t.Errorf("read config: %v", err)
			return
		}
		rates <- cfg.Config.SampleRate

		for _, reply := range replies {
			mt, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				t.Errorf("expected binary audio, got type %d", mt)
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, rates
}

func TestVoskClient_PartialThenFinal(t *testing.T) {
	srv, rates := voskServer(t, []string{`{"partial":"what is"}`, `{"text":"what is in front of me"}`})
	c := NewVoskClient(VoskConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Log: discard()})
	defer c.Close()

	text, final, err := c.Accept(context.Background(), make([]byte, 16))
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if final || text != "what is" {
		t.Errorf("got (%q, %v), want partial", text, final)
	}
	if rate := <-rates; rate != 16000 {
		t.Errorf("sample rate = %d", rate)
	}

	text, final, err = c.Accept(context.Background(), make([]byte, 16))
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !final || text != "what is in front of me" {
		t.Errorf("got (%q, %v), want final", text, final)
	}
}

func TestVoskClient_EmptyFinal(t *testing.T) {
	srv, _ := voskServer(t, []string{`{"text":""}`})
	c := NewVoskClient(VoskConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Log: discard()})
	defer c.Close()

	text, final, err := c.Accept(context.Background(), []byte{0, 0})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !final || text != "" {
		t.Errorf("got (%q, %v), want empty final", text, final)
	}
}

func TestVoskClient_RedialsAfterFailure(t *testing.T) {
	srv, rates := voskServer(t, []string{`{"partial":""}`})
	c := NewVoskClient(VoskConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Log: discard()})
	defer c.Close()

	if _, _, err := c.Accept(context.Background(), []byte{0, 0}); err != nil {
		t.Fatalf("first Accept: %v", err)
	}
	<-rates

	// The server hangs up after its scripted replies.
	if _, _, err := c.Accept(context.Background(), []byte{0, 0}); err == nil {
		t.Fatal("expected error after server hung up")
	}

	if _, _, err := c.Accept(context.Background(), []byte{0, 0}); err != nil {
		t.Fatalf("Accept after redial: %v", err)
	}
	if rate := <-rates; rate != 16000 {
		t.Errorf("redial did not resend config, rate %d", rate)
	}
}

func TestVoskClient_DialFailure(t *testing.T) {
	c := NewVoskClient(VoskConfig{URL: "ws://127.0.0.1:1", Log: discard()})
	if _, _, err := c.Accept(context.Background(), []byte{0}); err == nil {
		t.Fatal("expected dial error")
	}
}
