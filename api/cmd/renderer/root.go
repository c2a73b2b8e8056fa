package renderer

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/breezy-desktop/xr-renderer/api/pkg/config"
	"github.com/breezy-desktop/xr-renderer/api/pkg/gpu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/imu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/pipeline"
)

var Fatal = FatalErrorHandler

type RendererOptions struct {
	Output  string
	Display string
	DRIDir  string

	RetryAttempts uint
	RetryDelay    time.Duration

	ShmPath             string
	StrictLayoutVersion bool
	WaitForDriver       bool

	Backend           string
	ShaderPath        string
	WatchShader       bool
	LookAheadOverride float64
	DisplayDistance   float64
	Curved            bool

	LogLevel string
}

func NewRendererOptions() (*RendererOptions, error) {
	cfg, err := config.LoadRendererConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return rendererOptionsFrom(cfg), nil
}

func rendererOptionsFrom(cfg config.RendererConfig) *RendererOptions {
	return &RendererOptions{
		Output:              cfg.Capture.Output,
		Display:             cfg.Capture.Display,
		DRIDir:              cfg.Capture.DRIDir,
		RetryAttempts:       cfg.Capture.RetryAttempts,
		RetryDelay:          cfg.Capture.RetryDelay,
		ShmPath:             cfg.IMU.ShmPath,
		StrictLayoutVersion: cfg.IMU.StrictLayoutVersion,
		WaitForDriver:       cfg.IMU.WaitForDriver,
		Backend:             cfg.Render.Backend,
		ShaderPath:          cfg.Render.ShaderPath,
		WatchShader:         cfg.Render.WatchShader,
		LookAheadOverride:   cfg.Render.LookAheadOverride,
		DisplayDistance:     cfg.Render.DisplayDistance,
		Curved:              cfg.Render.Curved,
		LogLevel:            cfg.LogLevel,
	}
}

func (o *RendererOptions) versionPolicy() imu.VersionPolicy {
	if o.StrictLayoutVersion {
		return imu.VersionStrict
	}
	return imu.VersionLenient
}

// renderArgs are the four positional arguments.
type renderArgs struct {
	Width      int
	Height     int
	CaptureFPS int
	RenderFPS  int
}

func parsePositive(name, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, value)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, v)
	}
	return v, nil
}

func parseRenderArgs(args []string) (renderArgs, error) {
	if len(args) != 4 {
		return renderArgs{}, fmt.Errorf("expected 4 arguments, got %d", len(args))
	}
	names := []string{"width", "height", "capture-fps", "render-fps"}
	values := make([]int, len(args))
	for i, arg := range args {
		v, err := parsePositive(names[i], arg)
		if err != nil {
			return renderArgs{}, err
		}
		values[i] = v
	}
	return renderArgs{Width: values[0], Height: values[1], CaptureFPS: values[2], RenderFPS: values[3]}, nil
}

func (o *RendererOptions) pipelineConfig(args renderArgs) (pipeline.Config, error) {
	backend, err := gpu.ParseBackend(o.Backend)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Width:             args.Width,
		Height:            args.Height,
		CaptureFPS:        float64(args.CaptureFPS),
		RenderFPS:         float64(args.RenderFPS),
		Output:            o.Output,
		Display:           o.Display,
		DRIDir:            o.DRIDir,
		RetryAttempts:     o.RetryAttempts,
		RetryDelay:        o.RetryDelay,
		ShmPath:           o.ShmPath,
		VersionPolicy:     o.versionPolicy(),
		WaitForDriver:     o.WaitForDriver,
		Backend:           backend,
		ShaderPath:        o.ShaderPath,
		WatchShader:       o.WatchShader,
		LookAheadOverride: o.LookAheadOverride,
		DisplayDistance:   o.DisplayDistance,
		Curved:            o.Curved,
	}, nil
}

func NewRootCmd() *cobra.Command {
	allOptions, err := NewRendererOptions()
	if err != nil {
		log.Warn().Err(err).Msg("ignoring invalid environment configuration, using defaults")
		allOptions = rendererOptionsFrom(config.DefaultRendererConfig())
	}

	rootCmd := &cobra.Command{
		Use:   getCommandLineExecutable() + " <width> <height> <capture-fps> <render-fps>",
		Short: "Breezy Desktop XR renderer",
		Long: `Captures the compositor's XR output and renders it to the glasses
through the Sombrero warp shader, driven by the IMU driver's head pose.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseRenderArgs(args)
			if err != nil {
				return err
			}
			return rendererCLI(cmd, allOptions, parsed)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&allOptions.Output, "output", allOptions.Output, "RandR output carrying the XR framebuffer")
	flags.StringVar(&allOptions.Display, "display", allOptions.Display, "X display to connect to (default $DISPLAY)")
	flags.StringVar(&allOptions.DRIDir, "dri-dir", allOptions.DRIDir, "Directory of DRM device nodes")
	flags.StringVar(&allOptions.ShmPath, "shm-path", allOptions.ShmPath, "IMU driver shared memory segment")
	flags.BoolVar(&allOptions.StrictLayoutVersion, "strict-layout-version", allOptions.StrictLayoutVersion,
		"Ignore IMU snapshots with an unexpected layout version")
	flags.BoolVar(&allOptions.WaitForDriver, "wait-for-driver", allOptions.WaitForDriver,
		"Wait for the IMU driver to create its segment instead of failing")
	flags.StringVar(&allOptions.Backend, "backend", allOptions.Backend, "Rendering backend: x11 or headless")
	flags.StringVar(&allOptions.ShaderPath, "shader", allOptions.ShaderPath, "Path to Sombrero.frag")
	flags.BoolVar(&allOptions.WatchShader, "watch-shader", allOptions.WatchShader, "Reload the shader when it changes")
	flags.Float64Var(&allOptions.LookAheadOverride, "look-ahead-override", allOptions.LookAheadOverride,
		"Look-ahead constant in ms, negative to use the driver's")
	flags.Float64Var(&allOptions.DisplayDistance, "display-distance", allOptions.DisplayDistance,
		"Virtual display distance, 0 for the default")
	flags.BoolVar(&allOptions.Curved, "curved", allOptions.Curved, "Render a curved virtual display")
	rootCmd.PersistentFlags().StringVar(&allOptions.LogLevel, "log-level", allOptions.LogLevel,
		"Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newIMUDumpCommand(allOptions))
	rootCmd.AddCommand(newProbeCommand(allOptions))

	return rootCmd
}

func rendererCLI(cmd *cobra.Command, options *RendererOptions, args renderArgs) error {
	closeLog := setupLogging(options.LogLevel)
	defer closeLog()

	cfg, err := options.pipelineConfig(args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().
		Str("version", Version).
		Int("width", args.Width).
		Int("height", args.Height).
		Int("capture_fps", args.CaptureFPS).
		Int("render_fps", args.RenderFPS).
		Msg("starting renderer")

	p := pipeline.New(cfg)
	if err := p.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start renderer")
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Wait()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return p.Stop()
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("renderer stopped")
		}
		return err
	}
}

func Execute() {
	rootCmd := NewRootCmd()
	rootCmd.SetContext(context.Background())
	rootCmd.SetOutput(os.Stdout)

	if err := rootCmd.Execute(); err != nil {
		Fatal(rootCmd, err.Error(), 1)
	}
}
