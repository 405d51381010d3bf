package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/sightline/internal/shared"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SpeakMethod is the unary RPC the speech sidecar exposes. It takes the text
// as a StringValue and returns once playback has finished.
const SpeakMethod = "/sightline.speech.v1.Speaker/Speak"

type Config struct {
	Address     string
	Token       string
	TLSCreds    credentials.TransportCredentials
	Backoff     shared.BackoffConfig
	DialOptions []grpc.DialOption
	Log         *slog.Logger
}

// Client plays announcements through the speech sidecar.
type Client struct {
	addr    string
	mu      sync.RWMutex
	conn    *grpc.ClientConn
	token   string
	opts    []grpc.DialOption
	backoff shared.BackoffConfig
	log     *slog.Logger
}

func New(cfg Config) (*Client, error) {
	var creds grpc.DialOption
	if cfg.TLSCreds != nil {
		creds = grpc.WithTransportCredentials(cfg.TLSCreds)
	} else {
		creds = grpc.WithTransportCredentials(insecure.NewCredentials())
	}
	opts := append([]grpc.DialOption{creds}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial sidecar: %w", err)
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		addr:    cfg.Address,
		conn:    conn,
		token:   cfg.Token,
		opts:    opts,
		backoff: cfg.Backoff.Normalize(),
		log:     log.With("component", "synthesis"),
	}, nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return false
	}
	s := conn.GetState()
	return s == connectivity.Ready || s == connectivity.Idle
}

// Speak blocks until the sidecar has played text. An unavailable sidecar is
// reconnected once before giving up.
func (c *Client) Speak(ctx context.Context, text string) error {
	err := c.invoke(ctx, text)
	if status.Code(err) != codes.Unavailable || ctx.Err() != nil {
		return err
	}

	c.log.Warn("speech sidecar unavailable, reconnecting", "addr", c.addr, "error", err)
	if rerr := c.Reconnect(ctx); rerr != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return c.invoke(ctx, text)
}

func (c *Client) invoke(ctx context.Context, text string) error {
	md := metadata.MD{}
	if c.token != "" {
		md.Set("authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("speak: %w", shared.ErrClosed)
	}

	start := time.Now()
	err := conn.Invoke(metadata.NewOutgoingContext(ctx, md), SpeakMethod, wrapperspb.String(text), &emptypb.Empty{})
	if err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	c.log.Debug("spoke", "chars", len(text), "duration", time.Since(start))
	return nil
}

func (c *Client) Reconnect(ctx context.Context) error {
	backoff := c.backoff.Initial
	for attempts := 0; attempts < c.backoff.MaxAttempts; attempts++ {
		if attempts > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = c.backoff.Next(backoff)
		}

		conn, err := grpc.NewClient(c.addr, c.opts...)
		if err != nil {
			continue
		}
		conn.Connect()
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if !conn.WaitForStateChange(waitCtx, connectivity.Idle) {
			cancel()
			conn.Close()
			continue
		}
		cancel()

		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.conn = conn
		c.mu.Unlock()
		return nil
	}
	return fmt.Errorf("reconnect to %s failed: %w", c.addr, shared.ErrUnavailable)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
