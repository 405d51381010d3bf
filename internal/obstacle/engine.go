package obstacle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/sightline/internal/announce"
	"github.com/eleven-am/sightline/internal/perception"
	"gonum.org/v1/gonum/mat"
)

type Announcer interface {
	Enqueue(text string, priority announce.Priority)
}

type Decision struct {
	FrameSeq      uint64
	At            time.Time
	Depth         DepthSignal
	LargeObject   bool
	Object        perception.Detection
	ObstacleNow   bool
	Confirmations int
	Confirmed     bool
	Warned        bool
	RepeatCount   int
}

type EngineConfig struct {
	Config    Config
	Frames    *perception.FrameStore
	Store     *perception.Store
	Active    *perception.Switch
	Detector  perception.Detector
	Depth     perception.DepthEstimator
	Announcer Announcer
	Log       *slog.Logger
	Clock     func() time.Time
	// OnDecision runs on the engine goroutine after every depth cycle.
	OnDecision func(Decision)
}

// Engine turns per-frame detector and depth output into a debounced obstacle
// decision. Run drives it from the Frame Store; ProcessFrame and Evaluate are
// the per-cycle steps.
type Engine struct {
	cfg        Config
	frames     *perception.FrameStore
	store      *perception.Store
	active     *perception.Switch
	detector   perception.Detector
	depth      perception.DepthEstimator
	announcer  Announcer
	log        *slog.Logger
	clock      func() time.Time
	onDecision func(Decision)

	frameCount uint64
	lastSeq    uint64
	detections []perception.Detection

	mu      sync.Mutex
	history *History
	warning WarningState
	last    Decision
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
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
	return &Engine{
		cfg:        cfg.Config,
		frames:     cfg.Frames,
		store:      cfg.Store,
		active:     cfg.Active,
		detector:   cfg.Detector,
		depth:      cfg.Depth,
		announcer:  cfg.Announcer,
		log:        cfg.Log.With("component", "obstacle"),
		clock:      cfg.Clock,
		onDecision: cfg.OnDecision,
		history:    NewHistory(cfg.Config.HistorySize),
	}, nil
}

// Run polls the Frame Store until ctx is done. While detection is inactive
// it idles without running inference.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("obstacle engine started",
		"combine", e.cfg.Combine,
		"history", e.cfg.HistorySize,
		"min_confirmations", e.cfg.MinConfirmations)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !e.active.On() {
			if !sleep(ctx, e.cfg.IdleInterval) {
				return ctx.Err()
			}
			continue
		}

		frame := e.frames.Get()
		if frame == nil || frame.Seq == e.lastSeq {
			if !sleep(ctx, e.cfg.CycleInterval) {
				return ctx.Err()
			}
			continue
		}
		e.lastSeq = frame.Seq

		e.ProcessFrame(ctx, frame)

		if !sleep(ctx, e.cfg.CycleInterval) {
			return ctx.Err()
		}
	}
}

// ProcessFrame runs whichever analyses are due for this frame. It reports a
// Decision only on depth cycles. Collaborator failures and panics are logged
// and degrade to "no signal" for the cycle. A nil frame is ignored.
func (e *Engine) ProcessFrame(ctx context.Context, frame *perception.Frame) (d Decision, ok bool) {
	if frame == nil {
		return Decision{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("obstacle cycle panicked", "frame_seq", frame.Seq, "panic", r)
			d, ok = Decision{}, false
		}
	}()

	e.frameCount++

	if e.frameCount%uint64(e.cfg.DetectEvery) == 0 {
		e.refreshDetections(ctx, frame)
	}

	if e.frameCount%uint64(e.cfg.DepthEvery) != 0 {
		return Decision{}, false
	}

	var depthMap *mat.Dense
	if e.depth != nil {
		var err error
		depthMap, err = e.depth.Estimate(ctx, frame)
		if err != nil {
			e.log.Error("depth estimation failed", "frame_seq", frame.Seq, "error", err)
			depthMap = nil
		}
	}

	width, height := frame.Width, frame.Height
	if (width == 0 || height == 0) && depthMap != nil {
		height, width = depthMap.Dims()
	}

	depthSig := AnalyzeDepth(depthMap, e.cfg)
	obj, large := LargeCentralObject(e.detections, width, height, e.cfg)
	obstacleNow := Fuse(depthSig.Obstacle, large, e.cfg.Combine)

	d = e.Evaluate(obstacleNow)
	d.FrameSeq = frame.Seq
	d.Depth = depthSig
	d.LargeObject = large
	d.Object = obj

	e.log.Debug("obstacle cycle",
		"frame_seq", frame.Seq,
		"median", depthSig.Median,
		"near_ratio", depthSig.NearRatio,
		"depth_obstacle", depthSig.Obstacle,
		"large_object", large,
		"obstacle_now", obstacleNow,
		"confirmed", d.Confirmed)

	e.mu.Lock()
	e.last = d
	e.mu.Unlock()

	if e.onDecision != nil {
		e.onDecision(d)
	}
	return d, true
}

func (e *Engine) refreshDetections(ctx context.Context, frame *perception.Frame) {
	if e.detector == nil {
		return
	}
	dets, err := e.detector.Detect(ctx, frame)
	if err != nil {
		e.log.Error("object detection failed", "frame_seq", frame.Seq, "error", err)
		dets = nil
	}
	dets = perception.WithAreaFractions(dets, frame.Width, frame.Height)
	e.detections = dets
	e.store.UpdateDetections(dets, e.clock())
	e.log.Debug("objects detected", "frame_seq", frame.Seq, "labels", perception.Labels(dets))
}

// Evaluate pushes one fused sample through smoothing and the warning state
// machine, publishes the flags to the Perception Store and enqueues a warning
// when one is due.
func (e *Engine) Evaluate(obstacleNow bool) Decision {
	now := e.clock()

	e.mu.Lock()
	e.history.Push(obstacleNow)
	count := e.history.Count()
	confirmed := count >= e.cfg.MinConfirmations
	wasActive := e.warning.Active
	warn := e.warning.Step(confirmed, now, e.cfg.MaxWarningCount, e.cfg.WarningInterval)
	repeat := e.warning.RepeatCount
	e.mu.Unlock()

	e.store.SetObstacle(obstacleNow, confirmed, now)

	if warn && e.announcer != nil {
		e.log.Warn("obstacle ahead", "confirmations", count, "repeat", repeat)
		e.announcer.Enqueue(WarningText, announce.PrioritySafety)
	}
	if wasActive && !confirmed {
		e.log.Info("obstacle cleared")
	}

	return Decision{
		At:            now,
		ObstacleNow:   obstacleNow,
		Confirmations: count,
		Confirmed:     confirmed,
		Warned:        warn,
		RepeatCount:   repeat,
	}
}

type State struct {
	Active      bool    `json:"active"`
	RepeatCount int     `json:"repeat_count"`
	History     []bool  `json:"history"`
	LastFrame   uint64  `json:"last_frame"`
	NearRatio   float64 `json:"near_ratio"`
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Active:      e.warning.Active,
		RepeatCount: e.warning.RepeatCount,
		History:     e.history.Samples(),
		LastFrame:   e.last.FrameSeq,
		NearRatio:   e.last.Depth.NearRatio,
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
