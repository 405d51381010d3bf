package bootstrap

import (
	"github.com/eleven-am/sightline/internal/announce"
	"github.com/eleven-am/sightline/internal/command"
	"github.com/eleven-am/sightline/internal/health"
	"github.com/eleven-am/sightline/internal/inference"
	"github.com/eleven-am/sightline/internal/obstacle"
	"github.com/eleven-am/sightline/internal/perception"
	"github.com/eleven-am/sightline/internal/synthesis"
	"github.com/eleven-am/sightline/internal/telemetry"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const version = "1.0.0"

type HealthParams struct {
	fx.In

	Config     *Config
	Frames     *perception.FrameStore
	Store      *perception.Store
	Active     *perception.Switch
	Engine     *obstacle.Engine
	Channel    *announce.Channel
	Dispatcher *command.Dispatcher
	Inference  *inference.Client
	Speaker    *synthesis.Client
	Telemetry  *telemetry.Publisher
}

func ProvideHealthHandler(p HealthParams) *health.Handler {
	deps := health.Deps{
		Device:        p.Config.DeviceID,
		Frames:        p.Frames,
		Store:         p.Store,
		Active:        p.Active,
		Engine:        p.Engine,
		Announcements: p.Channel,
		Dispatcher:    p.Dispatcher,
		Inference:     p.Inference,
		Speaker:       p.Speaker,
		Version:       version,
	}
	if p.Telemetry != nil {
		deps.Telemetry = p.Telemetry
	}
	return health.NewHandler(deps)
}

func metricsMiddleware(h *health.Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	}
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(metricsMiddleware(h))
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
