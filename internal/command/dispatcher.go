package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eleven-am/sightline/internal/announce"
	"github.com/eleven-am/sightline/internal/perception"
	"github.com/eleven-am/sightline/internal/shared"
)

type Announcer interface {
	Enqueue(text string, priority announce.Priority)
	Close()
}

type Assistant interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	Matcher   *Matcher
	Announcer Announcer
	Store     *perception.Store
	Frames    *perception.FrameStore
	Active    *perception.Switch
	Faces     perception.FaceMatcher
	Text      perception.TextReader
	Assistant Assistant
	Log       *slog.Logger
	// QueueSize bounds transcripts waiting for dispatch.
	QueueSize int
	// Timeout bounds each collaborator call made for a command.
	Timeout time.Duration
	// OnExit runs once after an exit command has closed the announcer.
	OnExit func()
	// OnCommand runs on the dispatcher goroutine for every matched transcript.
	OnCommand func(transcript string, m Match)
}

// Dispatcher consumes transcripts one at a time and executes the matched
// command. It is the only writer of the detection-active flag besides the
// status API.
type Dispatcher struct {
	matcher     *Matcher
	announcer   Announcer
	store       *perception.Store
	frames      *perception.FrameStore
	active      *perception.Switch
	faces       perception.FaceMatcher
	text        perception.TextReader
	assistant   Assistant
	log         *slog.Logger
	timeout     time.Duration
	onExit      func()
	onCommand   func(string, Match)
	transcripts chan string
}

func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Announcer == nil {
		return nil, fmt.Errorf("dispatcher needs an announcer: %w", shared.ErrInvalidConfig)
	}
	if cfg.Matcher == nil {
		m, err := NewMatcher(DefaultPhrases, DefaultCutoff)
		if err != nil {
			return nil, err
		}
		cfg.Matcher = m
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Store == nil {
		cfg.Store = perception.NewStore()
	}
	if cfg.Frames == nil {
		cfg.Frames = perception.NewFrameStore()
	}
	if cfg.Active == nil {
		cfg.Active = perception.NewSwitch(true)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	return &Dispatcher{
		matcher:     cfg.Matcher,
		announcer:   cfg.Announcer,
		store:       cfg.Store,
		frames:      cfg.Frames,
		active:      cfg.Active,
		faces:       cfg.Faces,
		text:        cfg.Text,
		assistant:   cfg.Assistant,
		log:         cfg.Log.With("component", "dispatcher"),
		timeout:     cfg.Timeout,
		onExit:      cfg.OnExit,
		onCommand:   cfg.OnCommand,
		transcripts: make(chan string, cfg.QueueSize),
	}, nil
}

// Submit queues a transcript without blocking. It fails when the queue is
// full.
func (d *Dispatcher) Submit(transcript string) error {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil
	}
	select {
	case d.transcripts <- transcript:
		return nil
	default:
		d.log.Warn("transcript dropped, dispatcher busy", "transcript", transcript)
		return fmt.Errorf("transcript queue full: %w", shared.ErrUnavailable)
	}
}

// Run dispatches queued transcripts until ctx is done or an exit command is
// handled. Exit returns nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("command dispatcher started", "cutoff", d.matcher.Cutoff())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case transcript := <-d.transcripts:
			if cmd := d.Handle(ctx, transcript); cmd == Exit || cmd == Quit {
				d.log.Info("exit requested")
				if d.onExit != nil {
					d.onExit()
				}
				return nil
			}
		}
	}
}

// Handle matches and executes one transcript, returning the command that ran.
// Failures are announced and logged, never returned.
func (d *Dispatcher) Handle(ctx context.Context, transcript string) (cmd Command) {
	var m Match
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("command panicked", "command", m.Command, "panic", r)
			d.announcer.Enqueue(TextUnavailable, announce.PriorityQuery)
			cmd = m.Command
		}
	}()

	m = d.matcher.Match(transcript)
	d.log.Info("transcript matched",
		"transcript", transcript,
		"command", m.Command,
		"kind", m.Kind,
		"score", m.Score)
	if d.onCommand != nil {
		d.onCommand(transcript, m)
	}

	switch m.Command {
	case Start:
		d.setDetection(true)
		d.announcer.Enqueue(TextStarting, announce.PriorityStatus)
	case Stop:
		d.setDetection(false)
		d.announcer.Enqueue(TextStopping, announce.PriorityStatus)
	case Exit, Quit:
		d.announcer.Enqueue(TextGoodbye, announce.PriorityConversation)
		d.announcer.Close()
	case WhatIsAhead:
		d.announcer.Enqueue(describeLabels(d.store.Labels().List()), announce.PriorityQuery)
	case WhoIsAhead:
		d.whoIsAhead(ctx)
	case ReadText:
		d.readText(ctx)
	default:
		d.converse(ctx, transcript)
	}
	return m.Command
}

func (d *Dispatcher) setDetection(on bool) {
	if d.active.Set(on) {
		d.log.Info("detection toggled", "active", on)
	}
}

func (d *Dispatcher) whoIsAhead(ctx context.Context) {
	frame := d.frames.Get()
	if frame == nil {
		d.announcer.Enqueue(TextNoFaceFrame, announce.PriorityQuery)
		return
	}
	if d.faces == nil {
		d.announcer.Enqueue(TextUnavailable, announce.PriorityQuery)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ids, err := d.faces.Match(ctx, frame)
	if err != nil {
		d.log.Error("face match failed", "frame_seq", frame.Seq, "error", err)
		d.announcer.Enqueue(TextFacesFailed, announce.PriorityQuery)
		return
	}
	d.announcer.Enqueue(describeFaces(ids), announce.PriorityQuery)
}

func (d *Dispatcher) readText(ctx context.Context) {
	frame := d.frames.Get()
	if frame == nil {
		d.announcer.Enqueue(TextNoReadFrame, announce.PriorityQuery)
		return
	}
	if d.text == nil {
		d.announcer.Enqueue(TextUnavailable, announce.PriorityQuery)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	text, err := d.text.Read(ctx, frame, d.store.Boxes())
	if err != nil {
		d.log.Error("text reading failed", "frame_seq", frame.Seq, "error", err)
		d.announcer.Enqueue(TextReadFailed, announce.PriorityQuery)
		return
	}
	for _, part := range readingParts(text) {
		d.announcer.Enqueue(part, announce.PriorityQuery)
	}
}

func (d *Dispatcher) converse(ctx context.Context, transcript string) {
	if d.assistant == nil {
		d.log.Debug("no assistant configured, ignoring transcript", "transcript", transcript)
		d.announcer.Enqueue(TextUnavailable, announce.PriorityConversation)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	reply, err := d.assistant.Respond(ctx, conversationPrompt(transcript, d.store.Snapshot()))
	if err != nil {
		d.log.Error("assistant request failed", "error", err)
		d.announcer.Enqueue(TextAssistantDown, announce.PriorityConversation)
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return
	}
	d.announcer.Enqueue(reply, announce.PriorityConversation)
}
