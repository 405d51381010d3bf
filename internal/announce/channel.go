package announce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Speaker synthesizes and plays text, returning once playback has finished.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type ChannelConfig struct {
	Speaker    Speaker
	Controller *SpeechController
	Log        *slog.Logger
	// OnSpoken runs on the worker goroutine after each playback attempt.
	OnSpoken func(a Announcement, err error)
}

// Channel serializes all spoken output through one worker goroutine.
type Channel struct {
	speaker  Speaker
	ctrl     *SpeechController
	log      *slog.Logger
	onSpoken func(Announcement, error)

	mu          sync.Mutex
	queue       *Queue
	closed      bool
	stopPending bool
	started     bool
	wake        chan struct{}
	done        chan struct{}
}

func NewChannel(cfg ChannelConfig) *Channel {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Controller == nil {
		cfg.Controller = NewSpeechController(0)
	}
	return &Channel{
		speaker:  cfg.Speaker,
		ctrl:     cfg.Controller,
		log:      cfg.Log.With("component", "announce"),
		onSpoken: cfg.OnSpoken,
		queue:    NewQueue(),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue never blocks. Announcements enqueued after Close are dropped.
func (c *Channel) Enqueue(text string, priority Priority) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Debug("announcement dropped after shutdown", "text", text, "priority", priority)
		return
	}
	c.queue.Push(Announcement{
		ID:         uuid.New().String(),
		Priority:   priority,
		Text:       text,
		EnqueuedAt: time.Now(),
	})
	c.mu.Unlock()

	c.log.Debug("announcement queued", "text", text, "priority", priority)
	c.signal()
}

// Close pushes the stop sentinel. The worker exits after speaking everything
// that was queued before it.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopPending = true
	c.queue.Push(Announcement{Priority: PriorityShutdown, Stop: true, EnqueuedAt: time.Now()})
	c.mu.Unlock()
	c.signal()
}

func (c *Channel) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Start launches the worker. It is a no-op when called more than once.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run(ctx)
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	c.log.Info("announcement worker started")

	for {
		c.mu.Lock()
		a, ok := c.queue.Pop()
		if ok && a.Stop {
			c.stopPending = false
		}
		c.mu.Unlock()

		if !ok {
			select {
			case <-c.wake:
				continue
			case <-ctx.Done():
				c.log.Info("announcement worker cancelled", "pending", c.Pending())
				return
			}
		}

		if a.Stop {
			c.log.Info("announcement worker stopped")
			return
		}

		c.speak(ctx, a)
	}
}

func (c *Channel) speak(ctx context.Context, a Announcement) {
	c.log.Info("speaking", "text", a.Text, "priority", a.Priority)

	var err error
	c.ctrl.OnTTSAudioStart()
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("speaker panicked", "panic", r)
			}
		}()
		if c.speaker != nil {
			err = c.speaker.Speak(ctx, a.Text)
		}
	}()
	c.ctrl.OnTTSAudioEnd(time.Now())

	if err != nil {
		c.log.Error("speak failed", "text", a.Text, "error", err)
	}
	if c.onSpoken != nil {
		c.onSpoken(a, err)
	}
}

// Done is closed when the worker exits.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the worker exits or ctx is done.
func (c *Channel) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.queue.Len()
	if c.stopPending {
		n--
	}
	return n
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) Controller() *SpeechController {
	return c.ctrl
}
