package camera

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/sightline/internal/announce"
	"github.com/eleven-am/sightline/internal/perception"
)

const (
	TextOpenFailed = "Camera could not be opened. Retrying in 3 seconds."
	TextReadFailed = "Failed to grab frame from camera. Reconnecting."
)

type Announcer interface {
	Enqueue(text string, priority announce.Priority)
}

type LoopConfig struct {
	Source    Source
	Frames    *perception.FrameStore
	Announcer Announcer
	OpenRetry time.Duration
	ReadRetry time.Duration
	// QuietRepeats announces only the first failure of a streak. Off by
	// default: every failure is announced.
	QuietRepeats bool
	Log          *slog.Logger
}

// Loop keeps the Frame Store fed from a camera source. Open and read
// failures are retried forever with a fixed delay and each one is announced
// as a diagnostic.
type Loop struct {
	source    Source
	frames    *perception.FrameStore
	announcer Announcer
	openRetry time.Duration
	readRetry time.Duration
	quiet     bool
	log       *slog.Logger
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.OpenRetry == 0 {
		cfg.OpenRetry = 3 * time.Second
	}
	if cfg.ReadRetry == 0 {
		cfg.ReadRetry = 2 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Loop{
		source:    cfg.Source,
		frames:    cfg.Frames,
		announcer: cfg.Announcer,
		openRetry: cfg.OpenRetry,
		readRetry: cfg.ReadRetry,
		quiet:     cfg.QuietRepeats,
		log:       cfg.Log.With("component", "camera"),
	}
}

func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("camera loop started")
	openFailing, readFailing := false, false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stream, err := l.source.Open(ctx)
		if err != nil {
			l.log.Error("camera open failed", "error", err)
			if !openFailing || !l.quiet {
				l.diagnose(TextOpenFailed)
			}
			openFailing = true
			if !sleep(ctx, l.openRetry) {
				return ctx.Err()
			}
			continue
		}
		openFailing = false
		l.log.Info("camera opened")

		n, err := l.pump(ctx, stream)
		_ = stream.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n > 0 {
			readFailing = false
		}

		l.log.Error("camera read failed", "error", err, "frames", n)
		if !readFailing || !l.quiet {
			l.diagnose(TextReadFailed)
		}
		readFailing = true
		if !sleep(ctx, l.readRetry) {
			return ctx.Err()
		}
	}
}

func (l *Loop) pump(ctx context.Context, stream Stream) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		frame, err := stream.Read(ctx)
		if err != nil {
			return n, err
		}
		if frame.Timestamp.IsZero() {
			frame.Timestamp = time.Now()
		}
		l.frames.Put(frame)
		n++
	}
}

func (l *Loop) diagnose(text string) {
	if l.announcer != nil {
		l.announcer.Enqueue(text, announce.PriorityDiagnostic)
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
