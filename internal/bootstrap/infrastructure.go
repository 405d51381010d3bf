package bootstrap

import (
	"context"
	"log/slog"

	"github.com/eleven-am/sightline/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// ProvideRedisClient returns nil when REDIS_ADDR is unset; telemetry is then
// disabled.
func ProvideRedisClient(lc fx.Lifecycle, cfg *Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func ProvideTelemetry(client *redis.Client, cfg *Config, logger *slog.Logger) *telemetry.Publisher {
	if client == nil {
		return nil
	}
	return telemetry.NewPublisher(client, telemetry.Config{
		Device: cfg.DeviceID,
		Log:    logger,
	})
}

func StartTelemetry(lc fx.Lifecycle, publisher *telemetry.Publisher, logger *slog.Logger) {
	if publisher == nil {
		logger.Info("telemetry disabled")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				_ = publisher.Run(ctx)
			}()
			logger.Info("telemetry enabled", "channel", publisher.Channel())
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRedisClient,
		ProvideTelemetry,
	),
	fx.Invoke(StartTelemetry),
)
