package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eleven-am/sightline/internal/announce"
)

type scriptedStream struct {
	buffers [][]byte
	pos     int
	closed  atomic.Bool
}

func (s *scriptedStream) Read() ([]byte, error) {
	if s.pos >= len(s.buffers) {
		return nil, io.EOF
	}
	b := s.buffers[s.pos]
	s.pos++
	return b, nil
}

func (s *scriptedStream) Close() error {
	s.closed.Store(true)
	return nil
}

type scriptedSource struct {
	mu      sync.Mutex
	fails   int
	streams []*scriptedStream
	opens   int
}

func (s *scriptedSource) Open(ctx context.Context) (AudioStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.fails > 0 {
		s.fails--
		return nil, errors.New("no input device")
	}
	if len(s.streams) == 0 {
		return nil, errors.New("no more streams")
	}
	st := s.streams[0]
	s.streams = s.streams[1:]
	return st, nil
}

// echoTranscriber treats every buffer as a final utterance of its own bytes.
type echoTranscriber struct {
	mu    sync.Mutex
	calls int
}

func (e *echoTranscriber) Accept(ctx context.Context, pcm []byte) (string, bool, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if string(pcm) == "partial" {
		return "par", false, nil
	}
	if string(pcm) == "broken" {
		return "", false, errors.New("recognizer reset")
	}
	return string(pcm), true, nil
}

type fixedGate bool

func (g fixedGate) CaptureAllowed(time.Time) bool { return bool(g) }

type recordingAnnouncer struct {
	mu    sync.Mutex
	texts []string
	prios []announce.Priority
}

func (a *recordingAnnouncer) Enqueue(text string, priority announce.Priority) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
	a.prios = append(a.prios, priority)
}

func (a *recordingAnnouncer) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.texts)
}

type collector struct {
	mu    sync.Mutex
	texts []string
}

func (c *collector) Sink(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *collector) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListener_ForwardsFinalTranscripts(t *testing.T) {
	stream := &scriptedStream{buffers: [][]byte{[]byte("partial"), []byte("start"), []byte("broken"), []byte(""), []byte("stop")}}
	src := &scriptedSource{streams: []*scriptedStream{stream}}
	out := &collector{}
	ann := &recordingAnnouncer{}

	l := NewListener(ListenerConfig{
		Source:      src,
		Transcriber: &echoTranscriber{},
		Gate:        fixedGate(true),
		Announcer:   ann,
		Sink:        out.Sink,
		RetryDelay:  time.Hour,
		Log:         discard(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = l.Run(ctx)

	got := out.Texts()
	if len(got) != 2 || got[0] != "start" || got[1] != "stop" {
		t.Fatalf("transcripts = %v, want [start stop]", got)
	}
	if !stream.closed.Load() {
		t.Error("stream should be closed after it ends")
	}
}

func TestListener_DiscardsAudioWhileSpeaking(t *testing.T) {
	stream := &scriptedStream{buffers: [][]byte{[]byte("goodbye"), []byte("exit")}}
	src := &scriptedSource{streams: []*scriptedStream{stream}}
	tr := &echoTranscriber{}
	out := &collector{}

	l := NewListener(ListenerConfig{
		Source:      src,
		Transcriber: tr,
		Gate:        fixedGate(false),
		Sink:        out.Sink,
		RetryDelay:  time.Hour,
		Log:         discard(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = l.Run(ctx)

	if len(out.Texts()) != 0 {
		t.Fatalf("captured %v while speaking", out.Texts())
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.calls != 0 {
		t.Errorf("transcriber called %d times while gated", tr.calls)
	}
}

func runFailingMicrophone(t *testing.T, quiet bool) (opens int, ann *recordingAnnouncer) {
	t.Helper()
	src := &scriptedSource{fails: 3}
	ann = &recordingAnnouncer{}

	l := NewListener(ListenerConfig{
		Source:       src,
		Transcriber:  &echoTranscriber{},
		Announcer:    ann,
		RetryDelay:   5 * time.Millisecond,
		QuietRepeats: quiet,
		Log:          discard(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := l.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want deadline exceeded", err)
	}

	src.mu.Lock()
	opens = src.opens
	src.mu.Unlock()
	if opens < 4 {
		t.Errorf("expected repeated open attempts, got %d", opens)
	}
	return opens, ann
}

func TestListener_AnnouncesEveryMicrophoneFailure(t *testing.T) {
	opens, ann := runFailingMicrophone(t, false)

	ann.mu.Lock()
	defer ann.mu.Unlock()
	if len(ann.texts) != opens {
		t.Fatalf("got %d diagnostics for %d failed opens", len(ann.texts), opens)
	}
	for i := range ann.texts {
		if ann.texts[i] != TextMicrophoneDown || ann.prios[i] != announce.PriorityDiagnostic {
			t.Errorf("diagnostic %d = %q at %v, want low-priority notice", i, ann.texts[i], ann.prios[i])
		}
	}
}

func TestListener_QuietRepeatsAnnouncesOnce(t *testing.T) {
	_, ann := runFailingMicrophone(t, true)

	ann.mu.Lock()
	defer ann.mu.Unlock()
	if len(ann.texts) != 1 || ann.texts[0] != TextMicrophoneDown {
		t.Errorf("diagnostics = %v, want one notice", ann.texts)
	}
}
