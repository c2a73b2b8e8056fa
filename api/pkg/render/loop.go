package render

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/breezy-desktop/xr-renderer/api/pkg/dmabuf"
	"github.com/breezy-desktop/xr-renderer/api/pkg/gpu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/imu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/pacing"
)

const (
	configRefreshInterval = time.Second
	statsInterval         = 10 * time.Second
)

// FrameSource hands over the newest captured frame, if any. *handoff.Mailbox
// implements it.
type FrameSource interface {
	Consume() (*dmabuf.Buffer, bool)
}

// PoseSource is the driver channel. *imu.Reader implements it.
type PoseSource interface {
	ReadPose() (imu.PoseSample, bool)
	ReadConfig() (imu.DeviceConfig, bool)
}

// ChangeNotifier reports whether the shader file changed since the last call.
type ChangeNotifier interface {
	Changed() bool
}

// FrameResult says what one iteration did.
type FrameResult int

const (
	FrameRendered FrameResult = iota
	FrameNoShader
	FrameNoBinding
	FrameNoPose
	FrameNoConfig
	FrameFailed
)

func (r FrameResult) String() string {
	switch r {
	case FrameRendered:
		return "rendered"
	case FrameNoShader:
		return "no_shader"
	case FrameNoBinding:
		return "no_binding"
	case FrameNoPose:
		return "no_pose"
	case FrameNoConfig:
		return "no_config"
	case FrameFailed:
		return "failed"
	default:
		return fmt.Sprintf("FrameResult(%d)", int(r))
	}
}

type LoopConfig struct {
	Device     gpu.Device
	Frames     FrameSource
	Poses      PoseSource
	ShaderPath string
	// ShaderChanges triggers a reload of ShaderPath, optional.
	ShaderChanges ChangeNotifier

	RenderFPS         float64
	LookAheadOverride float64
	DisplayDistance   float64
	Curved            bool

	ShouldStop func() bool
}

type LoopStats struct {
	Rendered       uint64
	Skipped        uint64
	Imported       uint64
	Reused         uint64
	ImportFailures uint64
}

// binding is the currently imported frame. The buffer's descriptor stays
// open for as long as the image is live.
type binding struct {
	image gpu.Image
	buf   *dmabuf.Buffer
}

// Loop is the render side of the pipeline. All of its methods must be called
// from the thread that owns the GPU context.
type Loop struct {
	cfg    LoopConfig
	pacer  *pacing.Pacer
	logger zerolog.Logger

	current *binding

	pose       imu.PoseSample
	havePose   bool
	config     imu.DeviceConfig
	haveConfig bool
	configRead time.Time

	rendered       atomic.Uint64
	skipped        atomic.Uint64
	imported       atomic.Uint64
	reused         atomic.Uint64
	importFailures atomic.Uint64
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.ShouldStop == nil {
		cfg.ShouldStop = func() bool { return false }
	}
	return &Loop{
		cfg:    cfg,
		pacer:  pacing.New(cfg.RenderFPS),
		logger: log.With().Str("component", "render_loop").Logger(),
	}
}

func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Rendered:       l.rendered.Load(),
		Skipped:        l.skipped.Load(),
		Imported:       l.imported.Load(),
		Reused:         l.reused.Load(),
		ImportFailures: l.importFailures.Load(),
	}
}

// Run loads the shader and renders until ctx is done or the stop flag is
// set. Only a shader that fails to load at startup is an error; everything
// after that degrades to skipped frames.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.cfg.Device.LoadShader(l.cfg.ShaderPath); err != nil {
		return fmt.Errorf("failed to load shader %s: %w", l.cfg.ShaderPath, err)
	}
	defer l.Close()

	l.logger.Info().
		Dur("period", l.pacer.Period()).
		Str("shader", l.cfg.ShaderPath).
		Msg("render loop started")

	lastStats := time.Now()
	for !l.cfg.ShouldStop() && ctx.Err() == nil {
		now := time.Now()
		if res := l.Step(now); res != FrameRendered {
			l.logger.Trace().Stringer("result", res).Msg("frame skipped")
		}

		if now.Sub(lastStats) >= statsInterval {
			lastStats = now
			l.logStats()
		}

		if err := l.pacer.Wait(ctx); err != nil {
			break
		}
	}

	l.logStats()
	l.logger.Info().Msg("render loop stopped")
	return nil
}

func (l *Loop) logStats() {
	s := l.Stats()
	l.logger.Debug().
		Str("rendered", humanize.Comma(int64(s.Rendered))).
		Str("skipped", humanize.Comma(int64(s.Skipped))).
		Str("imported", humanize.Comma(int64(s.Imported))).
		Str("reused", humanize.Comma(int64(s.Reused))).
		Uint64("import_failures", s.ImportFailures).
		Uint64("missed_deadlines", l.pacer.Missed).
		Msg("render stats")
}

// Step runs one iteration without pacing.
func (l *Loop) Step(now time.Time) FrameResult {
	res := l.step(now)
	if res == FrameRendered {
		l.rendered.Add(1)
	} else {
		l.skipped.Add(1)
	}
	return res
}

func (l *Loop) step(now time.Time) FrameResult {
	l.reloadShader()

	if buf, ok := l.cfg.Frames.Consume(); ok {
		l.bind(buf)
	}

	pose, ok := l.cfg.Poses.ReadPose()
	if ok {
		l.pose, l.havePose = pose, true
	}
	l.refreshConfig(now)

	switch {
	case !l.cfg.Device.ShaderLoaded():
		return FrameNoShader
	case l.current == nil:
		return FrameNoBinding
	case !l.havePose:
		return FrameNoPose
	case !l.haveConfig:
		return FrameNoConfig
	}

	uniforms := ComputeUniforms(Inputs{
		Pose:              l.pose,
		Config:            l.config,
		SourceWidth:       l.current.buf.Width,
		SourceHeight:      l.current.buf.Height,
		RefreshRate:       l.refreshRate(),
		Now:               now,
		LookAheadOverride: l.cfg.LookAheadOverride,
		DisplayDistance:   l.cfg.DisplayDistance,
		Curved:            l.cfg.Curved,
	})

	if err := l.cfg.Device.Draw(l.current.image, uniforms); err != nil {
		l.logger.Warn().Err(err).Msg("draw failed")
		return FrameFailed
	}
	if err := l.cfg.Device.Present(); err != nil {
		l.logger.Warn().Err(err).Msg("present failed")
		return FrameFailed
	}
	return FrameRendered
}

func (l *Loop) refreshRate() float64 {
	if r := l.cfg.Device.RefreshRate(); r > 0 {
		return r
	}
	return l.cfg.RenderFPS
}

func (l *Loop) reloadShader() {
	if l.cfg.ShaderChanges == nil || !l.cfg.ShaderChanges.Changed() {
		return
	}
	if err := l.cfg.Device.LoadShader(l.cfg.ShaderPath); err != nil {
		l.logger.Warn().Err(err).Str("shader", l.cfg.ShaderPath).Msg("shader reload failed, keeping previous program")
		return
	}
	l.logger.Info().Str("shader", l.cfg.ShaderPath).Msg("shader reloaded")
}

func (l *Loop) refreshConfig(now time.Time) {
	if l.haveConfig && now.Sub(l.configRead) < configRefreshInterval {
		return
	}
	cfg, ok := l.cfg.Poses.ReadConfig()
	if !ok {
		return
	}
	if l.haveConfig && cfg != l.config {
		l.logger.Debug().
			Float32("fov", cfg.DiagonalFOVDegrees).
			Bool("sbs", cfg.SBSEnabled).
			Bool("smooth_follow", cfg.SmoothFollowEnabled).
			Msg("device config changed")
	}
	l.config, l.haveConfig = cfg, true
	l.configRead = now
}

// bind makes buf the live frame. A buffer backed by the storage that is
// already imported is dropped and the existing image redrawn.
func (l *Loop) bind(buf *dmabuf.Buffer) {
	if l.current != nil && buf.FramebufferID == l.current.buf.FramebufferID &&
		buf.Width == l.current.buf.Width && buf.Height == l.current.buf.Height {
		buf.Close()
		l.reused.Add(1)
		return
	}

	img, err := l.cfg.Device.ImportBuffer(buf)
	if err != nil {
		l.importFailures.Add(1)
		l.logger.Warn().Err(err).Stringer("buffer", buf).Msg("failed to import frame")
		buf.Close()
		return
	}
	l.imported.Add(1)
	l.logger.Debug().Stringer("buffer", buf).Msg("imported frame")

	l.release()
	l.current = &binding{image: img, buf: buf}
}

func (l *Loop) release() {
	if l.current == nil {
		return
	}
	l.cfg.Device.ReleaseImage(l.current.image)
	l.current.buf.Close()
	l.current = nil
}

// Close releases the live binding. The device itself belongs to the caller.
func (l *Loop) Close() {
	l.release()
}
