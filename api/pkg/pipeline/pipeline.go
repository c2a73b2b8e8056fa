// Package pipeline wires capture, handoff and rendering into one process and
// owns their startup and teardown.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/breezy-desktop/xr-renderer/api/pkg/capture"
	"github.com/breezy-desktop/xr-renderer/api/pkg/gpu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/handoff"
	"github.com/breezy-desktop/xr-renderer/api/pkg/imu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/render"
	"github.com/breezy-desktop/xr-renderer/api/pkg/xrandr"
)

type Config struct {
	Width      int
	Height     int
	CaptureFPS float64
	RenderFPS  float64

	Output  string
	Display string
	DRIDir  string

	RetryAttempts uint
	RetryDelay    time.Duration

	ShmPath       string
	VersionPolicy imu.VersionPolicy
	WaitForDriver bool

	Backend           gpu.Backend
	ShaderPath        string
	WatchShader       bool
	LookAheadOverride float64
	DisplayDistance   float64
	Curved            bool
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	if c.CaptureFPS <= 0 {
		return fmt.Errorf("invalid capture rate %v", c.CaptureFPS)
	}
	if c.RenderFPS <= 0 {
		return fmt.Errorf("invalid render rate %v", c.RenderFPS)
	}
	return nil
}

// frameSource is the capture side's view of the compositor.
type frameSource interface {
	capture.Acquirer
	Close()
}

// outputCapture is a capture session plus the X connection its resolver
// uses. Close releases them in that order.
type outputCapture struct {
	*capture.Session
	randr *xrandr.Client
}

func (c *outputCapture) Close() {
	c.Session.Close()
	c.randr.Close()
}

func openOutputCapture(cfg Config) (frameSource, error) {
	client, err := xrandr.Connect(cfg.Display)
	if err != nil {
		return nil, err
	}
	session := capture.NewSession(capture.SessionConfig{
		Output:        cfg.Output,
		Resolver:      client,
		Finder:        capture.FindDRMDevice(cfg.DRIDir),
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	})
	return &outputCapture{Session: session, randr: client}, nil
}

// Pipeline runs the capture and render goroutines. Start it once; Stop and
// Wait may be called any number of times, started or not.
type Pipeline struct {
	cfg    Config
	logger zerolog.Logger

	stopRequested atomic.Bool
	started       atomic.Bool
	joinOnce      sync.Once
	wg            *conc.WaitGroup
	cancel        context.CancelFunc

	mu   sync.Mutex
	errs []error

	mailbox *handoff.Mailbox
	reader  *imu.Reader
	source  frameSource

	newDevice   func(gpu.Config) (gpu.Device, error)
	openCapture func(Config) (frameSource, error)
}

func New(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		logger:      log.With().Str("component", "pipeline").Logger(),
		wg:          conc.NewWaitGroup(),
		newDevice:   gpu.New,
		openCapture: openOutputCapture,
	}
}

// StopRequested reports whether the pipeline has been asked to stop.
func (p *Pipeline) StopRequested() bool {
	return p.stopRequested.Load()
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
	p.stopRequested.Store(true)
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Pipeline) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

// Start opens the shared memory segment and the capture session and starts
// both goroutines. On error everything opened so far is released.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}
	if p.started.Load() {
		return errors.New("pipeline already started")
	}

	shaderPath, err := gpu.ResolveShaderPath(p.cfg.ShaderPath)
	if err != nil {
		return err
	}

	if p.cfg.WaitForDriver {
		if err := imu.WaitForSegment(ctx, p.cfg.ShmPath); err != nil {
			return fmt.Errorf("failed waiting for IMU segment: %w", err)
		}
	}

	p.reader, err = imu.Open(p.cfg.ShmPath, imu.WithVersionPolicy(p.cfg.VersionPolicy))
	if err != nil {
		return fmt.Errorf("failed to open IMU segment: %w", err)
	}

	p.source, err = p.openCapture(p.cfg)
	if err != nil {
		p.teardown()
		return fmt.Errorf("failed to open capture: %w", err)
	}

	p.mailbox = handoff.New()

	ctx, p.cancel = context.WithCancel(ctx)
	p.started.Store(true)

	p.logger.Info().
		Int("width", p.cfg.Width).
		Int("height", p.cfg.Height).
		Float64("capture_fps", p.cfg.CaptureFPS).
		Float64("render_fps", p.cfg.RenderFPS).
		Str("output", p.cfg.Output).
		Str("shader", shaderPath).
		Msg("pipeline starting")

	p.wg.Go(func() {
		p.runCapture(ctx)
	})
	p.wg.Go(func() {
		p.runRender(ctx, shaderPath)
	})
	return nil
}

func (p *Pipeline) runCapture(ctx context.Context) {
	loop := capture.NewLoop(p.source, p.mailbox, p.cfg.CaptureFPS, p.stopRequested.Load)
	if err := loop.Run(ctx); err != nil {
		p.fail(fmt.Errorf("capture: %w", err))
	}
}

// runRender owns the GPU context, which is bound to the OS thread that made
// it current.
func (p *Pipeline) runRender(ctx context.Context, shaderPath string) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	device, err := p.newDevice(gpu.Config{
		Backend:     p.cfg.Backend,
		Display:     p.cfg.Display,
		Title:       "Breezy Desktop",
		Width:       p.cfg.Width,
		Height:      p.cfg.Height,
		RefreshRate: p.cfg.RenderFPS,
	})
	if err != nil {
		p.fail(fmt.Errorf("failed to create GPU device: %w", err))
		return
	}
	defer func() {
		if err := device.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to close GPU device")
		}
	}()

	var changes render.ChangeNotifier
	if p.cfg.WatchShader {
		watcher, stopWatch, err := watchShader(ctx, shaderPath)
		if err != nil {
			p.logger.Warn().Err(err).Msg("shader hot reload disabled")
		} else {
			defer stopWatch()
			changes = watcher
		}
	}

	loop := render.NewLoop(render.LoopConfig{
		Device:            device,
		Frames:            p.mailbox,
		Poses:             p.reader,
		ShaderPath:        shaderPath,
		ShaderChanges:     changes,
		RenderFPS:         p.cfg.RenderFPS,
		LookAheadOverride: p.cfg.LookAheadOverride,
		DisplayDistance:   p.cfg.DisplayDistance,
		Curved:            p.cfg.Curved,
		ShouldStop:        p.stopRequested.Load,
	})
	if err := loop.Run(ctx); err != nil {
		p.fail(fmt.Errorf("render: %w", err))
	}
}

// watchShader runs a ShaderWatcher in its own goroutine. The returned stop
// func cancels it, waits for it to return and closes it.
func watchShader(ctx context.Context, path string) (*render.ShaderWatcher, func(), error) {
	watcher, err := render.NewShaderWatcher(path)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	wg := conc.NewWaitGroup()
	wg.Go(func() {
		watcher.Run(ctx)
	})

	return watcher, func() {
		cancel()
		wg.Wait()
		if err := watcher.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close shader watcher")
		}
	}, nil
}

// Wait blocks until both goroutines have exited, then releases everything.
// It returns the errors that ended the pipeline, if any.
func (p *Pipeline) Wait() error {
	if !p.started.Load() {
		return p.err()
	}
	p.joinOnce.Do(func() {
		if recovered := p.wg.WaitAndRecover(); recovered != nil {
			p.fail(recovered.AsError())
		}
		p.teardown()
		p.logger.Info().Msg("pipeline stopped")
	})
	return p.err()
}

// Stop asks both goroutines to finish and waits for them.
func (p *Pipeline) Stop() error {
	p.stopRequested.Store(true)
	if p.cancel != nil {
		p.cancel()
	}
	return p.Wait()
}

func (p *Pipeline) teardown() {
	if p.mailbox != nil {
		stats := p.mailbox.Stats()
		p.mailbox.Close()
		p.logger.Debug().
			Uint64("published", stats.Published).
			Uint64("consumed", stats.Consumed).
			Uint64("dropped", stats.Dropped).
			Msg("frame handoff closed")
	}
	if p.reader != nil {
		stats := p.reader.Stats()
		if err := p.reader.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to unmap IMU segment")
		}
		p.logger.Debug().
			Int64("accepted", stats.Accepted).
			Int64("torn", stats.Torn).
			Int64("disabled", stats.Disabled).
			Msg("IMU reader closed")
	}
	if p.source != nil {
		p.source.Close()
	}
	if p.cancel != nil {
		p.cancel()
	}
}
