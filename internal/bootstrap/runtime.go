package bootstrap

import (
	"context"
	"log/slog"

	"github.com/eleven-am/sightline/internal/announce"
	"github.com/eleven-am/sightline/internal/assistant"
	"github.com/eleven-am/sightline/internal/camera"
	"github.com/eleven-am/sightline/internal/command"
	"github.com/eleven-am/sightline/internal/faces"
	"github.com/eleven-am/sightline/internal/inference"
	"github.com/eleven-am/sightline/internal/microphone"
	"github.com/eleven-am/sightline/internal/perception"
	"github.com/eleven-am/sightline/internal/speech"
	"github.com/eleven-am/sightline/internal/synthesis"
	"github.com/eleven-am/sightline/internal/telemetry"
	"go.uber.org/fx"
)

const TextStartup = "Smart glasses system started. Say a command."

// appendLoop runs fn on its own goroutine for the lifetime of the app. Stop
// cancels fn's context and waits for it to return.
func appendLoop(lc fx.Lifecycle, name string, logger *slog.Logger, fn func(context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := fn(ctx); err != nil && ctx.Err() == nil {
					logger.Error(name+" stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func ProvideChannel(
	ctrl *announce.SpeechController,
	speaker *synthesis.Client,
	publisher *telemetry.Publisher,
	logger *slog.Logger,
) *announce.Channel {
	var onSpoken func(announce.Announcement, error)
	if publisher != nil {
		onSpoken = func(a announce.Announcement, err error) {
			ev := telemetry.Event{
				Type:     telemetry.EventSpoken,
				Text:     a.Text,
				Priority: int(a.Priority),
			}
			if err != nil {
				ev.Error = err.Error()
			}
			publisher.Record(ev)
		}
	}
	return announce.NewChannel(announce.ChannelConfig{
		Speaker:    speaker,
		Controller: ctrl,
		Log:        logger,
		OnSpoken:   onSpoken,
	})
}

// StartAnnouncements must be invoked before any other loop so that its stop
// hook runs last and the queue drains after producers have stopped.
func StartAnnouncements(lc fx.Lifecycle, channel *announce.Channel, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			channel.Start(ctx)
			channel.Enqueue(TextStartup, announce.PriorityStatus)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			defer cancel()
			channel.Close()
			if err := channel.Wait(stopCtx); err != nil {
				logger.Warn("announcements not drained before shutdown", "pending", channel.Pending())
			}
			return nil
		},
	})
}

func ProvideMatcher(cfg *Config) (*command.Matcher, error) {
	return command.NewMatcher(command.DefaultPhrases, cfg.FuzzyCutoff)
}

// ProvideAssistant returns a nil Assistant when no credential is configured;
// conversational transcripts are then answered with an apology.
func ProvideAssistant(cfg *Config, logger *slog.Logger) (command.Assistant, error) {
	if !cfg.AssistantEnabled() {
		logger.Info("assistant disabled, no credentials configured")
		return nil, nil
	}
	client, err := assistant.NewClient(context.Background(), assistant.Config{
		Model:  cfg.GeminiModel,
		APIKey: cfg.GeminiAPIKey,
		Token:  cfg.GeminiToken,
		UseADC: cfg.GoogleADC,
		Log:    logger,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

type DispatcherParams struct {
	fx.In

	Matcher    *command.Matcher
	Channel    *announce.Channel
	Store      *perception.Store
	Frames     *perception.FrameStore
	Active     *perception.Switch
	Faces      *faces.Matcher
	Inference  *inference.Client
	Assistant  command.Assistant
	Telemetry  *telemetry.Publisher
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
}

func ProvideDispatcher(p DispatcherParams) (*command.Dispatcher, error) {
	return command.NewDispatcher(command.Config{
		Matcher:   p.Matcher,
		Announcer: p.Channel,
		Store:     p.Store,
		Frames:    p.Frames,
		Active:    p.Active,
		Faces:     p.Faces,
		Text:      p.Inference,
		Assistant: p.Assistant,
		Log:       p.Logger,
		OnExit: func() {
			if err := p.Shutdowner.Shutdown(); err != nil {
				p.Logger.Error("shutdown request failed", "error", err)
			}
		},
		OnCommand: commandRecorder(p.Telemetry, p.Active),
	})
}

func commandRecorder(publisher *telemetry.Publisher, active *perception.Switch) func(string, command.Match) {
	if publisher == nil {
		return nil
	}
	return func(transcript string, m command.Match) {
		publisher.Record(telemetry.Event{
			Type:    telemetry.EventCommand,
			Text:    transcript,
			Command: string(m.Command),
		})
		if m.Command == command.Start || m.Command == command.Stop {
			on := m.Command == command.Start
			publisher.Record(telemetry.Event{
				Type:   telemetry.EventDetection,
				Active: &on,
			})
		}
	}
}

func StartDispatcher(lc fx.Lifecycle, dispatcher *command.Dispatcher, logger *slog.Logger) {
	appendLoop(lc, "command dispatcher", logger, dispatcher.Run)
}

func ProvideCameraLoop(cfg *Config, frames *perception.FrameStore, channel *announce.Channel, logger *slog.Logger) (*camera.Loop, error) {
	source, err := camera.NewSource(cfg.CameraURL)
	if err != nil {
		return nil, err
	}
	return camera.NewLoop(camera.LoopConfig{
		Source:    source,
		Frames:    frames,
		Announcer: channel,
		Log:       logger,
	}), nil
}

func StartCameraLoop(lc fx.Lifecycle, loop *camera.Loop, logger *slog.Logger) {
	appendLoop(lc, "camera loop", logger, loop.Run)
}

func ProvideTranscriber(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) *speech.VoskClient {
	client := speech.NewVoskClient(speech.VoskConfig{
		URL: cfg.VoskURL,
		Log: logger,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func ProvideListener(
	cfg *Config,
	transcriber *speech.VoskClient,
	ctrl *announce.SpeechController,
	channel *announce.Channel,
	dispatcher *command.Dispatcher,
	logger *slog.Logger,
) *speech.Listener {
	return speech.NewListener(speech.ListenerConfig{
		Source: microphone.NewSource(microphone.Config{
			DeviceRate: cfg.MicRate,
			Log:        logger,
		}),
		Transcriber: transcriber,
		Gate:        ctrl,
		Announcer:   channel,
		Sink:        dispatcher.Submit,
		Log:         logger,
	})
}

func StartListener(lc fx.Lifecycle, cfg *Config, listener *speech.Listener, logger *slog.Logger) {
	if !cfg.MicEnabled {
		logger.Info("microphone disabled, transcripts accepted over http only")
		return
	}
	appendLoop(lc, "speech listener", logger, listener.Run)
}

var RuntimeModule = fx.Options(
	fx.Provide(
		ProvideChannel,
		ProvideMatcher,
		ProvideAssistant,
		ProvideDispatcher,
		ProvideCameraLoop,
		ProvideTranscriber,
		ProvideListener,
	),
	fx.Invoke(
		StartAnnouncements,
		StartObstacleEngine,
		StartCameraLoop,
		StartDispatcher,
		StartListener,
	),
)
