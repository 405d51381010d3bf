package speech

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eleven-am/sightline/internal/announce"
)

const TextMicrophoneDown = "Microphone unavailable. Retrying."

type AudioStream interface {
	// Read blocks for the next PCM buffer.
	Read() ([]byte, error)
	Close() error
}

type AudioSource interface {
	Open(ctx context.Context) (AudioStream, error)
}

type Transcriber interface {
	Accept(ctx context.Context, pcm []byte) (text string, final bool, err error)
}

// Gate reports whether capture is allowed right now.
type Gate interface {
	CaptureAllowed(now time.Time) bool
}

type Announcer interface {
	Enqueue(text string, priority announce.Priority)
}

type ListenerConfig struct {
	Source      AudioSource
	Transcriber Transcriber
	Gate        Gate
	Announcer   Announcer
	// Sink receives each final, non-empty transcript.
	Sink       func(text string) error
	RetryDelay time.Duration
	// QuietRepeats announces only the first failure of a streak.
	QuietRepeats bool
	Log          *slog.Logger
	Clock        func() time.Time
}

// Listener captures microphone audio and forwards final transcripts. Buffers
// captured while the device is speaking are discarded rather than queued.
type Listener struct {
	source      AudioSource
	transcriber Transcriber
	gate        Gate
	announcer   Announcer
	sink        func(string) error
	retryDelay  time.Duration
	quiet       bool
	log         *slog.Logger
	clock       func() time.Time
}

func NewListener(cfg ListenerConfig) *Listener {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Listener{
		source:      cfg.Source,
		transcriber: cfg.Transcriber,
		gate:        cfg.Gate,
		announcer:   cfg.Announcer,
		sink:        cfg.Sink,
		retryDelay:  cfg.RetryDelay,
		quiet:       cfg.QuietRepeats,
		log:         cfg.Log.With("component", "listener"),
		clock:       cfg.Clock,
	}
}

func (l *Listener) Run(ctx context.Context) error {
	l.log.Info("voice listener started")
	failing := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stream, err := l.source.Open(ctx)
		if err != nil {
			l.log.Error("microphone open failed", "error", err)
			if !failing || !l.quiet {
				l.diagnose()
			}
			failing = true
			if !sleep(ctx, l.retryDelay) {
				return ctx.Err()
			}
			continue
		}
		failing = false

		err = l.capture(ctx, stream)
		_ = stream.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Error("microphone stream lost", "error", err)
		l.diagnose()
		failing = true
		if !sleep(ctx, l.retryDelay) {
			return ctx.Err()
		}
	}
}

func (l *Listener) capture(ctx context.Context, stream AudioStream) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		pcm, err := stream.Read()
		if err != nil {
			return err
		}
		if l.gate != nil && !l.gate.CaptureAllowed(l.clock()) {
			continue
		}

		text, final, err := l.transcriber.Accept(ctx, pcm)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			l.log.Warn("recognizer error", "error", err)
			continue
		}
		if !final || text == "" {
			continue
		}

		l.log.Info("recognized", "text", text)
		if l.sink != nil {
			if err := l.sink(text); err != nil {
				l.log.Warn("transcript not delivered", "error", err)
			}
		}
	}
}

func (l *Listener) diagnose() {
	if l.announcer != nil {
		l.announcer.Enqueue(TextMicrophoneDown, announce.PriorityDiagnostic)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
