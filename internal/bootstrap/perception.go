package bootstrap

import (
	"context"
	"crypto/tls"
	"log/slog"

	"github.com/eleven-am/sightline/internal/announce"
	"github.com/eleven-am/sightline/internal/faces"
	"github.com/eleven-am/sightline/internal/inference"
	"github.com/eleven-am/sightline/internal/obstacle"
	"github.com/eleven-am/sightline/internal/perception"
	"github.com/eleven-am/sightline/internal/synthesis"
	"github.com/eleven-am/sightline/internal/telemetry"
	"go.uber.org/fx"
	"google.golang.org/grpc/credentials"
)

func ProvideFrameStore() *perception.FrameStore {
	return perception.NewFrameStore()
}

func ProvidePerceptionStore() *perception.Store {
	return perception.NewStore()
}

func ProvideDetectionSwitch() *perception.Switch {
	return perception.NewSwitch(true)
}

func ProvideSpeechController(cfg *Config) *announce.SpeechController {
	return announce.NewSpeechController(cfg.EchoTail)
}

func ProvideInferenceClient(cfg *Config, logger *slog.Logger) *inference.Client {
	return inference.NewClient(inference.Config{
		URL:     cfg.InferenceURL,
		Token:   cfg.SidecarToken,
		Timeout: cfg.InferenceTimeout,
		Log:     logger,
	})
}

func ProvideGallery(cfg *Config, logger *slog.Logger) (*faces.Gallery, error) {
	gallery := faces.NewGallery(cfg.FaceThreshold)
	if cfg.FacesFile == "" {
		return gallery, nil
	}
	if err := gallery.LoadFile(cfg.FacesFile); err != nil {
		return nil, err
	}
	logger.Info("face gallery loaded", "path", cfg.FacesFile, "entries", gallery.Len())
	return gallery, nil
}

func ProvideFaceMatcher(client *inference.Client, gallery *faces.Gallery, logger *slog.Logger) *faces.Matcher {
	return faces.NewMatcher(client, gallery, logger)
}

func ProvideSynthesisClient(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) (*synthesis.Client, error) {
	var creds credentials.TransportCredentials
	if cfg.SidecarTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	client, err := synthesis.New(synthesis.Config{
		Address:  cfg.TTSAddress,
		Token:    cfg.SidecarToken,
		TLSCreds: creds,
		Log:      logger,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

type EngineParams struct {
	fx.In

	Config    *Config
	Frames    *perception.FrameStore
	Store     *perception.Store
	Active    *perception.Switch
	Inference *inference.Client
	Channel   *announce.Channel
	Telemetry *telemetry.Publisher
	Logger    *slog.Logger
}

func ProvideObstacleEngine(p EngineParams) (*obstacle.Engine, error) {
	tuning, err := obstacle.Preset(p.Config.ObstaclePreset)
	if err != nil {
		return nil, err
	}
	return obstacle.NewEngine(obstacle.EngineConfig{
		Config:     tuning,
		Frames:     p.Frames,
		Store:      p.Store,
		Active:     p.Active,
		Detector:   p.Inference,
		Depth:      p.Inference,
		Announcer:  p.Channel,
		Log:        p.Logger,
		OnDecision: decisionRecorder(p.Telemetry),
	})
}

// decisionRecorder mirrors depth cycles that changed something worth seeing
// remotely: a positive signal, a confirmation or a warning.
func decisionRecorder(publisher *telemetry.Publisher) func(obstacle.Decision) {
	if publisher == nil {
		return nil
	}
	return func(d obstacle.Decision) {
		if !d.ObstacleNow && !d.Confirmed && !d.Warned {
			return
		}
		ev := telemetry.Event{
			Type:      telemetry.EventObstacle,
			At:        d.At,
			Confirmed: d.Confirmed,
			Warned:    d.Warned,
			NearRatio: d.Depth.NearRatio,
		}
		if d.LargeObject {
			ev.Labels = []string{d.Object.Label}
		}
		publisher.Record(ev)
	}
}

func StartObstacleEngine(lc fx.Lifecycle, engine *obstacle.Engine, logger *slog.Logger) {
	appendLoop(lc, "obstacle engine", logger, engine.Run)
}

var PerceptionModule = fx.Options(
	fx.Provide(
		ProvideFrameStore,
		ProvidePerceptionStore,
		ProvideDetectionSwitch,
		ProvideSpeechController,
		ProvideInferenceClient,
		ProvideGallery,
		ProvideFaceMatcher,
		ProvideSynthesisClient,
		ProvideObstacleEngine,
	),
)
