package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eleven-am/sightline/internal/command"
	"github.com/eleven-am/sightline/internal/faces"
	"github.com/eleven-am/sightline/internal/obstacle"
	"github.com/eleven-am/sightline/internal/shared"
	"github.com/google/uuid"
)

type Config struct {
	ServerAddr string
	DeviceID   string
	LogLevel   string

	CameraURL string

	InferenceURL     string
	InferenceTimeout time.Duration
	TTSAddress       string
	SidecarToken     string
	SidecarTLS       bool

	VoskURL    string
	MicRate    int
	EchoTail   time.Duration
	MicEnabled bool

	GeminiAPIKey string
	GeminiToken  string
	GeminiModel  string
	GoogleADC    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ObstaclePreset string
	FuzzyCutoff    float64
	FacesFile      string
	FaceThreshold  float64
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		DeviceID:   getEnv("DEVICE_ID", uuid.New().String()),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		CameraURL: getEnv("CAMERA_URL", "http://localhost:8081/video"),

		InferenceURL:     getEnv("INFERENCE_URL", "http://localhost:8500"),
		InferenceTimeout: getEnvDuration("INFERENCE_TIMEOUT", 10*time.Second),
		TTSAddress:       getEnv("TTS_ADDRESS", "localhost:50053"),
		SidecarToken:     getEnv("SIDECAR_TOKEN", ""),
		SidecarTLS:       getEnvBool("SIDECAR_TLS", false),

		VoskURL:    getEnv("VOSK_URL", "ws://localhost:2700"),
		MicRate:    getEnvInt("MIC_RATE", 16000),
		EchoTail:   getEnvDuration("ECHO_TAIL", 250*time.Millisecond),
		MicEnabled: getEnvBool("MIC_ENABLED", true),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiToken:  getEnv("GEMINI_TOKEN", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", ""),
		GoogleADC:    getEnvBool("GOOGLE_ADC", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ObstaclePreset: getEnv("OBSTACLE_PRESET", "balanced"),
		FuzzyCutoff:    getEnvFloat("FUZZY_CUTOFF", command.DefaultCutoff),
		FacesFile:      getEnv("FACES_FILE", ""),
		FaceThreshold:  getEnvFloat("FACE_THRESHOLD", faces.DefaultThreshold),
	}
}

// Validate checks the values the runtime cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CameraURL) == "" {
		return fmt.Errorf("CAMERA_URL is required: %w", shared.ErrInvalidConfig)
	}
	if c.InferenceURL == "" {
		return fmt.Errorf("INFERENCE_URL is required: %w", shared.ErrInvalidConfig)
	}
	if c.TTSAddress == "" {
		return fmt.Errorf("TTS_ADDRESS is required: %w", shared.ErrInvalidConfig)
	}
	if c.FuzzyCutoff <= 0 || c.FuzzyCutoff > 1 {
		return fmt.Errorf("FUZZY_CUTOFF must be in (0, 1]: %w", shared.ErrInvalidConfig)
	}
	if _, err := obstacle.Preset(c.ObstaclePreset); err != nil {
		return err
	}
	return nil
}

// AssistantEnabled reports whether any Gemini credential is configured.
func (c *Config) AssistantEnabled() bool {
	return c.GeminiAPIKey != "" || c.GeminiToken != "" || c.GoogleADC
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
