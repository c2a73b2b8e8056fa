// Package render draws captured frames through the warp shader at the
// glasses' refresh rate.
package render

import (
	"time"

	"github.com/breezy-desktop/xr-renderer/api/pkg/gpu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/imu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/xrmath"
)

const (
	lookAheadCapMS = 45.0
	secondsPerDay  = 24 * 60 * 60
)

var bannerPosition = [2]float32{0.5, 0.9}

// Inputs is everything one frame's uniforms depend on.
type Inputs struct {
	Pose   imu.PoseSample
	Config imu.DeviceConfig

	SourceWidth  uint32
	SourceHeight uint32
	RefreshRate  float64
	Now          time.Time

	// LookAheadOverride replaces the driver's look-ahead constant when >= 0.
	LookAheadOverride float64
	// DisplayDistance is the configured virtual display distance, 0 if unset.
	DisplayDistance float64
	Curved          bool
	ShowBanner      bool
}

// displayResolution falls back to the source size when the driver hasn't
// reported one.
func (in Inputs) displayResolution() (float64, float64) {
	w, h := float64(in.Config.DisplayResolution[0]), float64(in.Config.DisplayResolution[1])
	if w == 0 || h == 0 {
		return float64(in.SourceWidth), float64(in.SourceHeight)
	}
	return w, h
}

func dateVector(now time.Time) [4]float32 {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return [4]float32{float32(y), float32(m), float32(d), float32(now.Sub(midnight).Seconds())}
}

// ComputeUniforms builds the full uniform set the warp shader expects. Every
// uniform is always present.
func ComputeUniforms(in Inputs) gpu.UniformSet {
	resW, resH := in.displayResolution()
	aspect := 1.0
	if resH > 0 {
		aspect = resW / resH
	}

	fovs := xrmath.DiagonalToCrossFOVs(xrmath.DegreeToRadian(float64(in.Config.DiagonalFOVDegrees)), aspect)
	halfW, halfH := fovs.HalfWidths()

	ratioX, ratioY := 1.0, 1.0
	if resW > 0 && resH > 0 {
		ratioX = float64(in.SourceWidth) / resW
		ratioY = float64(in.SourceHeight) / resH
	}

	northOffset := 1.0
	if in.DisplayDistance > 0 {
		northOffset = xrmath.AdjustDisplayDistanceForMonitorSize(in.DisplayDistance,
			resW, resH, float64(in.SourceWidth), float64(in.SourceHeight))
	}

	frametime := 0.0
	if in.RefreshRate > 0 {
		frametime = 1000.0 / in.RefreshRate
	}

	nowMS := float64(in.Now.UnixMilli())
	lookAhead := xrmath.LookAheadMS(float64(in.Pose.TimestampMS), nowMS,
		float64(in.Config.LookAheadCfg[0]), in.LookAheadOverride)

	lens := float32(in.Config.LensDistanceRatio)
	cfg := in.Config.LookAheadCfg
	pos := in.Pose.Position
	date := dateVector(in.Now)

	return gpu.UniformSet{
		gpu.Int("virtual_display_enabled", 1),
		gpu.Mat4("pose_orientation", in.Pose.OrientationMatrix),
		gpu.Vec3("pose_position", float32(pos[0]), float32(pos[1]), float32(pos[2])),
		gpu.Vec4("look_ahead_cfg", cfg[0], cfg[1], cfg[2], cfg[3]),
		gpu.Vec2("display_resolution", float32(resW), float32(resH)),
		gpu.Vec2("source_to_display_ratio", float32(ratioX), float32(ratioY)),
		gpu.Float("display_size", 1),
		gpu.Float("display_north_offset", float32(northOffset)),
		gpu.Vec3("lens_vector", lens, 0, 0),
		gpu.Vec3("lens_vector_r", lens, 0, 0),
		gpu.Vec2("texcoord_x_limits", 0, 1),
		gpu.Vec2("texcoord_x_limits_r", 0, 1),
		gpu.Bool("show_banner", in.ShowBanner),
		gpu.Float("frametime", float32(frametime)),
		gpu.Float("look_ahead_ms", float32(lookAhead)),
		gpu.Bool("custom_banner_enabled", in.Config.CustomBannerEnabled),
		gpu.Vec2("trim_percent", 0, 0),
		gpu.Bool("curved_display", in.Curved),
		gpu.Bool("sbs_enabled", in.Config.SBSEnabled),
		gpu.Float("half_fov_z_rads", float32(fovs.Vertical/2)),
		gpu.Float("half_fov_y_rads", float32(fovs.Horizontal/2)),
		gpu.Vec2("fov_half_widths", float32(halfW), float32(halfH)),
		gpu.Vec2("fov_widths", float32(2*halfW), float32(2*halfH)),
		gpu.Int("sideview_enabled", 0),
		gpu.Float("sideview_position", 0),
		gpu.Vec2("banner_position", bannerPosition[0], bannerPosition[1]),
		gpu.Float("day_in_seconds", secondsPerDay),
		gpu.Vec4("date", date[0], date[1], date[2], date[3]),
		gpu.Vec4("keepalive_date", date[0], date[1], date[2], date[3]),
		gpu.Vec4("imu_reset_data", 0, 0, 0, 1),
		gpu.Float("look_ahead_ms_cap", lookAheadCapMS),
		gpu.Int("sbs_mode_stretched", 0),
	}
}

