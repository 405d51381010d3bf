package obstacle

import (
	"fmt"
	"slices"
	"time"

	"github.com/eleven-am/sightline/internal/shared"
)

type Combine string

const (
	CombineAnd Combine = "and"
	CombineOr  Combine = "or"
)

const WarningText = "Warning! Obstacle detected ahead."

type Config struct {
	CentralRegion    float64
	DepthThreshold   float64
	NearPixelRatio   float64
	MinObjectSize    float64
	ObstacleTypes    []string
	HistorySize      int
	MinConfirmations int
	Combine          Combine
	MaxWarningCount  int
	// WarningInterval spaces repeated warnings within one confirmed span.
	WarningInterval time.Duration
	DetectEvery     int
	DepthEvery      int
	IdleInterval    time.Duration
	CycleInterval   time.Duration
}

var DefaultObstacleTypes = []string{
	"person", "bicycle", "car", "motorcycle", "bus", "truck",
	"chair", "couch", "bed", "dining table", "bench",
	"potted plant", "dog", "cat", "horse", "sheep", "cow",
}

func DefaultConfig() Config {
	return Config{
		CentralRegion:    0.4,
		DepthThreshold:   0.5,
		NearPixelRatio:   0.20,
		MinObjectSize:    0.15,
		ObstacleTypes:    slices.Clone(DefaultObstacleTypes),
		HistorySize:      3,
		MinConfirmations: 2,
		Combine:          CombineAnd,
		MaxWarningCount:  2,
		WarningInterval:  4 * time.Second,
		DetectEvery:      2,
		DepthEvery:       3,
		IdleInterval:     100 * time.Millisecond,
		CycleInterval:    50 * time.Millisecond,
	}
}

var Presets = []string{"sensitive", "balanced", "conservative"}

// Preset returns DefaultConfig adjusted to a named sensitivity profile.
func Preset(name string) (Config, error) {
	cfg := DefaultConfig()
	switch name {
	case "", "balanced":
	case "sensitive":
		cfg.DepthThreshold = 0.6
		cfg.NearPixelRatio = 0.15
		cfg.MinObjectSize = 0.10
		cfg.MinConfirmations = 1
		cfg.Combine = CombineOr
	case "conservative":
		cfg.DepthThreshold = 0.4
		cfg.NearPixelRatio = 0.25
		cfg.MinObjectSize = 0.20
		cfg.MinConfirmations = 3
	default:
		return cfg, fmt.Errorf("unknown preset %q: %w", name, shared.ErrInvalidConfig)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.CentralRegion <= 0 || c.CentralRegion > 1:
		return fmt.Errorf("central region %v out of (0,1]: %w", c.CentralRegion, shared.ErrInvalidConfig)
	case c.DepthThreshold <= 0 || c.DepthThreshold >= 1:
		return fmt.Errorf("depth threshold %v out of (0,1): %w", c.DepthThreshold, shared.ErrInvalidConfig)
	case c.NearPixelRatio < 0 || c.NearPixelRatio > 1:
		return fmt.Errorf("near pixel ratio %v out of [0,1]: %w", c.NearPixelRatio, shared.ErrInvalidConfig)
	case c.MinObjectSize < 0 || c.MinObjectSize > 1:
		return fmt.Errorf("min object size %v out of [0,1]: %w", c.MinObjectSize, shared.ErrInvalidConfig)
	case c.HistorySize < 1:
		return fmt.Errorf("history size must be positive: %w", shared.ErrInvalidConfig)
	case c.MinConfirmations < 1 || c.MinConfirmations > c.HistorySize:
		return fmt.Errorf("min confirmations %d out of [1,%d]: %w", c.MinConfirmations, c.HistorySize, shared.ErrInvalidConfig)
	case c.Combine != CombineAnd && c.Combine != CombineOr:
		return fmt.Errorf("combine mode %q: %w", c.Combine, shared.ErrInvalidConfig)
	case c.MaxWarningCount < 0:
		return fmt.Errorf("max warning count must not be negative: %w", shared.ErrInvalidConfig)
	case c.DetectEvery < 1 || c.DepthEvery < 1:
		return fmt.Errorf("analysis cadence must be at least every frame: %w", shared.ErrInvalidConfig)
	}
	return nil
}

func (c Config) isObstacleType(label string) bool {
	return slices.Contains(c.ObstacleTypes, label)
}
