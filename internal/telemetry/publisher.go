package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	EventObstacle  EventType = "obstacle"
	EventSpoken    EventType = "spoken"
	EventCommand   EventType = "command"
	EventDetection EventType = "detection"
)

type Event struct {
	Type      EventType `json:"type"`
	At        time.Time `json:"at"`
	Text      string    `json:"text,omitempty"`
	Priority  int       `json:"priority,omitempty"`
	Command   string    `json:"command,omitempty"`
	Confirmed bool      `json:"confirmed,omitempty"`
	Warned    bool      `json:"warned,omitempty"`
	NearRatio float64   `json:"near_ratio,omitempty"`
	Labels    []string  `json:"labels,omitempty"`
	Active    *bool     `json:"active,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type Config struct {
	Device     string
	RecentSize int
	BufferSize int
	Log        *slog.Logger
}

// Publisher mirrors runtime events to redis: each event is published on
// sightline:<device>:events and pushed onto a capped sightline:<device>:recent
// list. Record never blocks; events are dropped when the buffer is full.
type Publisher struct {
	redis      *redis.Client
	channel    string
	recentKey  string
	recentSize int64
	events     chan Event
	log        *slog.Logger
}

func NewPublisher(client *redis.Client, cfg Config) *Publisher {
	if cfg.Device == "" {
		cfg.Device = "default"
	}
	if cfg.RecentSize <= 0 {
		cfg.RecentSize = 100
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Publisher{
		redis:      client,
		channel:    fmt.Sprintf("sightline:%s:events", cfg.Device),
		recentKey:  fmt.Sprintf("sightline:%s:recent", cfg.Device),
		recentSize: int64(cfg.RecentSize),
		events:     make(chan Event, cfg.BufferSize),
		log:        cfg.Log.With("component", "telemetry"),
	}
}

func (p *Publisher) Channel() string {
	return p.channel
}

func (p *Publisher) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case p.events <- ev:
	default:
		p.log.Debug("telemetry buffer full, dropping event", "type", ev.Type)
	}
}

// Run drains recorded events until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.events:
			if err := p.Publish(ctx, ev); err != nil && ctx.Err() == nil {
				p.log.Warn("telemetry publish failed", "type", ev.Type, "error", err)
			}
		}
	}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.redis.Pipeline()
	pipe.Publish(ctx, p.channel, data)
	pipe.LPush(ctx, p.recentKey, data)
	pipe.LTrim(ctx, p.recentKey, 0, p.recentSize-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n events, newest first.
func (p *Publisher) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = int(p.recentSize)
	}
	raw, err := p.redis.LRange(ctx, p.recentKey, 0, int64(n)-1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (p *Publisher) Ping(ctx context.Context) error {
	return p.redis.Ping(ctx).Err()
}
