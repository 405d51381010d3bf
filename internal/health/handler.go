package health

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/sightline/internal/announce"
	"github.com/eleven-am/sightline/internal/obstacle"
	"github.com/eleven-am/sightline/internal/perception"
	"github.com/eleven-am/sightline/internal/shared"
	"github.com/labstack/echo/v4"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const DefaultStaleFrameAge = 5 * time.Second

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines         int    `json:"goroutines"`
	MemoryAllocMB      uint64 `json:"memory_alloc_mb"`
	MemoryTotalAllocMB uint64 `json:"memory_total_alloc_mb"`
	MemorySysMB        uint64 `json:"memory_sys_mb"`
	NumGC              uint32 `json:"num_gc"`
}

type RequestStats struct {
	TotalRequests     uint64 `json:"total_requests"`
	ActiveConnections int64  `json:"active_connections"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Requests      RequestStats               `json:"requests"`
	Runtime       RuntimeStats               `json:"runtime"`
	Components    map[string]ComponentStatus `json:"components"`
}

type SpeechStats struct {
	State      announce.SpeechState `json:"state"`
	Pending    int                  `json:"pending"`
	Utterances int                  `json:"utterances"`
	Closed     bool                 `json:"closed"`
}

type StatusResponse struct {
	Device          string                `json:"device"`
	Timestamp       time.Time             `json:"timestamp"`
	UptimeSeconds   int64                 `json:"uptime_seconds"`
	DetectionActive bool                  `json:"detection_active"`
	Camera          perception.FrameStats `json:"camera"`
	Perception      perception.Snapshot   `json:"perception"`
	Obstacle        obstacle.State        `json:"obstacle"`
	Speech          SpeechStats           `json:"speech"`
}

type TranscriptRequest struct {
	Text string `json:"text"`
}

type DetectionRequest struct {
	Active *bool `json:"active"`
}

type DetectionResponse struct {
	Active  bool `json:"active"`
	Changed bool `json:"changed"`
}

type InferenceProbe interface {
	IsAvailable(ctx context.Context) bool
}

type SpeakerProbe interface {
	IsConnected() bool
}

type TelemetryProbe interface {
	Ping(ctx context.Context) error
}

type TranscriptSink interface {
	Submit(transcript string) error
}

type EngineState interface {
	State() obstacle.State
}

type Announcements interface {
	Pending() int
	Closed() bool
	Controller() *announce.SpeechController
}

// Deps collects what the handler reports on. Nil probes are reported as not
// configured; Telemetry is optional and omitted from readiness when nil.
type Deps struct {
	Device        string
	Frames        *perception.FrameStore
	Store         *perception.Store
	Active        *perception.Switch
	Engine        EngineState
	Announcements Announcements
	Dispatcher    TranscriptSink
	Inference     InferenceProbe
	Speaker       SpeakerProbe
	Telemetry     TelemetryProbe
	StaleAfter    time.Duration
	Version       string
	Clock         func() time.Time
}

type componentCheck struct {
	name  string
	check func(context.Context) ComponentStatus
}

type Handler struct {
	deps      Deps
	startTime time.Time

	totalRequests     uint64
	activeConnections int64
}

func NewHandler(deps Deps) *Handler {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.StaleAfter <= 0 {
		deps.StaleAfter = DefaultStaleFrameAge
	}
	if deps.Frames == nil {
		deps.Frames = perception.NewFrameStore()
	}
	if deps.Store == nil {
		deps.Store = perception.NewStore()
	}
	if deps.Active == nil {
		deps.Active = perception.NewSwitch(true)
	}
	return &Handler{
		deps:      deps,
		startTime: deps.Clock(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)

	api := e.Group("/api/v1")
	api.GET("/status", h.Status)
	api.POST("/transcripts", h.SubmitTranscript)
	api.PUT("/detection", h.SetDetection)
}

func (h *Handler) IncrementRequests() {
	atomic.AddUint64(&h.totalRequests, 1)
}

func (h *Handler) IncrementConnections() {
	atomic.AddInt64(&h.activeConnections, 1)
}

func (h *Handler) DecrementConnections() {
	atomic.AddInt64(&h.activeConnections, -1)
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]ComponentStatus)
	var mu sync.Mutex
	var wg sync.WaitGroup

	checks := []componentCheck{
		{"camera", h.checkCamera},
		{"inference", h.checkInference},
		{"tts", h.checkTTS},
	}
	if h.deps.Telemetry != nil {
		checks = append(checks, componentCheck{"redis", h.checkRedis})
	}

	wg.Add(len(checks))
	for _, check := range checks {
		go func(name string, fn func(context.Context) ComponentStatus) {
			defer wg.Done()
			status := fn(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}(check.name, check.check)
	}
	wg.Wait()

	overallStatus := h.computeOverallStatus(components)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	now := h.deps.Clock()
	resp := HealthResponse{
		Status:        overallStatus,
		Timestamp:     now.UTC(),
		Version:       h.deps.Version,
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		Requests: RequestStats{
			TotalRequests:     atomic.LoadUint64(&h.totalRequests),
			ActiveConnections: atomic.LoadInt64(&h.activeConnections),
		},
		Runtime: RuntimeStats{
			Goroutines:         runtime.NumGoroutine(),
			MemoryAllocMB:      memStats.Alloc / 1024 / 1024,
			MemoryTotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
			MemorySysMB:        memStats.Sys / 1024 / 1024,
			NumGC:              memStats.NumGC,
		},
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

func (h *Handler) Status(c echo.Context) error {
	now := h.deps.Clock()
	resp := StatusResponse{
		Device:          h.deps.Device,
		Timestamp:       now.UTC(),
		UptimeSeconds:   int64(now.Sub(h.startTime).Seconds()),
		DetectionActive: h.deps.Active.On(),
		Camera:          h.deps.Frames.Stats(now),
		Perception:      h.deps.Store.Snapshot(),
	}
	if h.deps.Engine != nil {
		resp.Obstacle = h.deps.Engine.State()
	}
	if a := h.deps.Announcements; a != nil {
		ctrl := a.Controller()
		resp.Speech = SpeechStats{
			State:      ctrl.State(),
			Pending:    a.Pending(),
			Utterances: ctrl.Utterances(),
			Closed:     a.Closed(),
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SubmitTranscript(c echo.Context) error {
	var req TranscriptRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "request body must be JSON")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return shared.BadRequest("missing_text", "text is required")
	}
	if h.deps.Dispatcher == nil {
		return shared.ServiceUnavailable("dispatcher_unavailable", "command dispatcher is not running")
	}
	if err := h.deps.Dispatcher.Submit(text); err != nil {
		if errors.Is(err, shared.ErrUnavailable) {
			return shared.ServiceUnavailable("dispatcher_busy", "command dispatcher is busy")
		}
		return shared.InternalError("submit_failed", "failed to submit transcript")
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"status": "queued",
	})
}

func (h *Handler) SetDetection(c echo.Context) error {
	var req DetectionRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "request body must be JSON")
	}
	if req.Active == nil {
		return shared.BadRequest("missing_active", "active is required")
	}
	changed := h.deps.Active.Set(*req.Active)
	return c.JSON(http.StatusOK, DetectionResponse{
		Active:  h.deps.Active.On(),
		Changed: changed,
	})
}

func (h *Handler) checkCamera(ctx context.Context) ComponentStatus {
	start := time.Now()
	stats := h.deps.Frames.Stats(h.deps.Clock())
	if !stats.HasFrame {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "no frame received",
		}
	}

	if stats.Age > h.deps.StaleAfter {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "latest frame is stale",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkInference(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.deps.Inference == nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "inference not configured",
		}
	}

	if !h.deps.Inference.IsAvailable(ctx) {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "health probe failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkTTS(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.deps.Speaker == nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "tts client not configured",
		}
	}

	if !h.deps.Speaker.IsConnected() {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "not connected",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkRedis(ctx context.Context) ComponentStatus {
	start := time.Now()
	if err := h.deps.Telemetry.Ping(ctx); err != nil {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) computeOverallStatus(components map[string]ComponentStatus) Status {
	criticalComponents := []string{"camera", "tts"}

	for _, name := range criticalComponents {
		if status, ok := components[name]; ok && status.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
	}

	hasUnhealthy := false
	hasDegraded := false
	for _, status := range components {
		if status.Status == StatusUnhealthy {
			hasUnhealthy = true
		}
		if status.Status == StatusDegraded {
			hasDegraded = true
		}
	}

	if hasUnhealthy || hasDegraded {
		return StatusDegraded
	}

	return StatusHealthy
}
