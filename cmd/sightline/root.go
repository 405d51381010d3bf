package main

import (
	"github.com/eleven-am/sightline/internal/bootstrap"
	"github.com/spf13/cobra"
)

const Version = "1.0.0"

type options struct {
	preset    string
	logLevel  string
	cameraURL string
	httpAddr  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "sightline",
		Short:         "Obstacle warnings and voice commands for assistive smart glasses",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevice(opts)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.preset, "preset", "", "obstacle preset: sensitive, balanced or conservative (env OBSTACLE_PRESET)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (env LOG_LEVEL)")
	flags.StringVar(&opts.cameraURL, "camera-url", "", "camera stream url, ws:// or http:// (env CAMERA_URL)")
	flags.StringVar(&opts.httpAddr, "http-addr", "", "status server listen address (env SERVER_ADDR)")

	root.AddCommand(newRunCmd(opts), newPresetsCmd())
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the camera, obstacle engine, voice commands and status server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevice(opts)
		},
	}
}

// loadConfig reads the environment and applies any flags that were set.
func loadConfig(opts *options) *bootstrap.Config {
	cfg := bootstrap.LoadConfig()
	if opts.preset != "" {
		cfg.ObstaclePreset = opts.preset
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.cameraURL != "" {
		cfg.CameraURL = opts.cameraURL
	}
	if opts.httpAddr != "" {
		cfg.ServerAddr = opts.httpAddr
	}
	return cfg
}

func runDevice(opts *options) error {
	return bootstrap.Run(loadConfig(opts))
}
