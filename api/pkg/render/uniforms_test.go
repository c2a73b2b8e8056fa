package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezy-desktop/xr-renderer/api/pkg/gpu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/imu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/xrmath"
)

func identityPose() imu.PoseSample {
	var m [16]float32
	m[3], m[7], m[11] = 1, 1, 1
	return imu.PoseSample{
		OrientationMatrix: m,
		Orientations:      [3]xrmath.Quat{xrmath.IdentityQuat, xrmath.IdentityQuat, xrmath.IdentityQuat},
		TimestampMS:       1000,
	}
}

func goldenConfig() imu.DeviceConfig {
	return imu.DeviceConfig{
		Version:            imu.LayoutVersion,
		LookAheadCfg:       [4]float32{10, 1.5, 0, 45},
		DisplayResolution:  [2]uint32{1920, 1080},
		DiagonalFOVDegrees: 50,
		LensDistanceRatio:  1.0,
	}
}

func goldenInputs() Inputs {
	return Inputs{
		Pose:              identityPose(),
		Config:            goldenConfig(),
		SourceWidth:       1920,
		SourceHeight:      1080,
		RefreshRate:       60,
		Now:               time.UnixMilli(1500),
		LookAheadOverride: -1,
	}
}

func lookup(t *testing.T, set gpu.UniformSet, name string) gpu.Uniform {
	t.Helper()
	u, ok := set.Lookup(name)
	require.True(t, ok, "missing uniform %s", name)
	return u
}

func TestComputeUniformsGolden(t *testing.T) {
	set := ComputeUniforms(goldenInputs())

	halfWidths := lookup(t, set, "fov_half_widths")
	assert.InDelta(t, 0.40642235, halfWidths.Value[0], 1e-4)
	assert.InDelta(t, 0.22861257, halfWidths.Value[1], 1e-4)

	widths := lookup(t, set, "fov_widths")
	assert.InDelta(t, 2*0.40642235, widths.Value[0], 1e-4)
	assert.InDelta(t, 2*0.22861257, widths.Value[1], 1e-4)

	ratio := lookup(t, set, "source_to_display_ratio")
	assert.Equal(t, float32(1), ratio.Value[0])
	assert.Equal(t, float32(1), ratio.Value[1])

	assert.InDelta(t, 0.38603059, lookup(t, set, "half_fov_y_rads").Value[0], 1e-5)
	assert.InDelta(t, 0.22475027, lookup(t, set, "half_fov_z_rads").Value[0], 1e-5)

	lens := lookup(t, set, "lens_vector")
	assert.Equal(t, [3]float32{1, 0, 0}, [3]float32{lens.Value[0], lens.Value[1], lens.Value[2]})
	assert.Equal(t, lens.Value, lookup(t, set, "lens_vector_r").Value)
}

func TestComputeUniformsContract(t *testing.T) {
	set := ComputeUniforms(goldenInputs())

	names := []string{
		"virtual_display_enabled", "pose_orientation", "pose_position", "look_ahead_cfg",
		"display_resolution", "source_to_display_ratio", "display_size", "display_north_offset",
		"lens_vector", "lens_vector_r", "texcoord_x_limits", "texcoord_x_limits_r",
		"show_banner", "frametime", "look_ahead_ms", "custom_banner_enabled", "trim_percent",
		"curved_display", "sbs_enabled", "half_fov_z_rads", "half_fov_y_rads",
		"fov_half_widths", "fov_widths", "sideview_enabled", "sideview_position",
		"banner_position", "day_in_seconds", "date", "keepalive_date", "imu_reset_data",
		"look_ahead_ms_cap", "sbs_mode_stretched",
	}
	require.Len(t, set, len(names))
	for _, name := range names {
		lookup(t, set, name)
	}

	assert.Equal(t, gpu.UniformInt, lookup(t, set, "virtual_display_enabled").Kind)
	assert.Equal(t, float32(1), lookup(t, set, "virtual_display_enabled").Value[0])
	assert.Equal(t, gpu.UniformMat4, lookup(t, set, "pose_orientation").Kind)
	assert.InDelta(t, 1000.0/60.0, lookup(t, set, "frametime").Value[0], 1e-4)
	assert.Equal(t, float32(510), lookup(t, set, "look_ahead_ms").Value[0])
	assert.Equal(t, float32(86400), lookup(t, set, "day_in_seconds").Value[0])
	assert.Equal(t, float32(45), lookup(t, set, "look_ahead_ms_cap").Value[0])
	assert.Equal(t, [16]float32{0.5, 0.9}, lookup(t, set, "banner_position").Value)
	assert.Equal(t, [16]float32{0, 0, 0, 1}, lookup(t, set, "imu_reset_data").Value)
	assert.Equal(t, float32(1), lookup(t, set, "display_north_offset").Value[0])
}

func TestComputeUniformsResetDataIgnoresSmoothFollow(t *testing.T) {
	in := goldenInputs()
	in.Config.SmoothFollowEnabled = true
	in.Config.SmoothFollowOrigin = [16]float32{0, 0, 0.7071068, 0.7071068}

	set := ComputeUniforms(in)
	assert.Equal(t, [16]float32{0, 0, 0, 1}, lookup(t, set, "imu_reset_data").Value)
}

func TestComputeUniformsOverridesAndFlags(t *testing.T) {
	in := goldenInputs()
	in.LookAheadOverride = 5
	in.Curved = true
	in.Config.SBSEnabled = true
	in.Config.CustomBannerEnabled = true
	in.SourceWidth, in.SourceHeight = 3840, 2160
	in.DisplayDistance = 1.0

	set := ComputeUniforms(in)
	assert.Equal(t, float32(505), lookup(t, set, "look_ahead_ms").Value[0])
	assert.Equal(t, float32(1), lookup(t, set, "curved_display").Value[0])
	assert.Equal(t, float32(1), lookup(t, set, "sbs_enabled").Value[0])
	assert.Equal(t, float32(1), lookup(t, set, "custom_banner_enabled").Value[0])

	ratio := lookup(t, set, "source_to_display_ratio")
	assert.Equal(t, float32(2), ratio.Value[0])
	assert.Equal(t, float32(2), ratio.Value[1])
	assert.Equal(t, float32(0.5), lookup(t, set, "display_north_offset").Value[0])
}

func TestComputeUniformsMissingResolution(t *testing.T) {
	in := goldenInputs()
	in.Config.DisplayResolution = [2]uint32{}

	set := ComputeUniforms(in)
	res := lookup(t, set, "display_resolution")
	assert.Equal(t, float32(1920), res.Value[0])
	assert.Equal(t, float32(1080), res.Value[1])
	assert.Equal(t, float32(1), lookup(t, set, "source_to_display_ratio").Value[0])
}

func TestDateVector(t *testing.T) {
	now := time.Date(2024, time.March, 5, 1, 2, 3, 0, time.UTC)
	assert.Equal(t, [4]float32{2024, 3, 5, 3723}, dateVector(now))
}
