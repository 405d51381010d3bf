package microphone

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eleven-am/sightline/internal/audio"
	"github.com/eleven-am/sightline/internal/speech"
	"github.com/gordonklaus/portaudio"
)

type Config struct {
	// DeviceRate is the capture rate. Audio is resampled to audio.SampleRate.
	DeviceRate      int
	FramesPerBuffer int
	Log             *slog.Logger
}

// Source captures mono int16 audio from the default input device.
type Source struct {
	deviceRate int
	frames     int
	log        *slog.Logger
}

func NewSource(cfg Config) *Source {
	if cfg.DeviceRate == 0 {
		cfg.DeviceRate = audio.SampleRate
	}
	if cfg.FramesPerBuffer == 0 {
		cfg.FramesPerBuffer = cfg.DeviceRate * audio.FramesPerBuffer / audio.SampleRate
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Source{
		deviceRate: cfg.DeviceRate,
		frames:     cfg.FramesPerBuffer,
		log:        cfg.Log.With("component", "microphone"),
	}
}

func (s *Source) Open(ctx context.Context) (speech.AudioStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("init portaudio: %w", err)
	}

	buf := make([]int16, s.frames)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.deviceRate), len(buf), buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	s.log.Info("microphone opened", "rate", s.deviceRate, "frames", s.frames)
	return &inputStream{stream: stream, buf: buf, rate: s.deviceRate}, nil
}

type inputStream struct {
	stream *portaudio.Stream
	buf    []int16
	rate   int
	once   sync.Once
}

func (in *inputStream) Read() ([]byte, error) {
	if err := in.stream.Read(); err != nil {
		return nil, fmt.Errorf("read input stream: %w", err)
	}
	samples := audio.ResampleInt16(in.buf, in.rate, audio.SampleRate)
	return audio.Int16ToPCMBytes(samples), nil
}

func (in *inputStream) Close() error {
	var err error
	in.once.Do(func() {
		_ = in.stream.Stop()
		err = in.stream.Close()
		_ = portaudio.Terminate()
	})
	return err
}
