package renderer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezy-desktop/xr-renderer/api/pkg/drm"
	"github.com/breezy-desktop/xr-renderer/api/pkg/gpu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/imu"
	"github.com/breezy-desktop/xr-renderer/api/pkg/xrmath"
)

func TestParseRenderArgs(t *testing.T) {
	args, err := parseRenderArgs([]string{"1920", "1080", "60", "72"})
	require.NoError(t, err)
	assert.Equal(t, renderArgs{Width: 1920, Height: 1080, CaptureFPS: 60, RenderFPS: 72}, args)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "not a number", args: []string{"wide", "1080", "60", "60"}, want: "width must be an integer"},
		{name: "zero", args: []string{"1920", "0", "60", "60"}, want: "height must be positive"},
		{name: "negative", args: []string{"1920", "1080", "-1", "60"}, want: "capture-fps must be positive"},
		{name: "float", args: []string{"1920", "1080", "60", "59.94"}, want: "render-fps must be an integer"},
		{name: "too few", args: []string{"1920"}, want: "expected 4 arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRenderArgs(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRootCmdRequiresFourArgs(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOutput(&out)
	cmd.SetArgs([]string{"1920", "1080"})
	require.Error(t, cmd.Execute())
}

func TestRootCmdRejectsBadArgs(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOutput(&out)
	cmd.SetArgs([]string{"1920", "1080", "sixty", "60"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture-fps")
}

func TestRootCmdFallsBackToDefaultsOnBadEnv(t *testing.T) {
	t.Setenv("CAPTURE_RETRY_DELAY", "soon")

	cmd := NewRootCmd()
	defaults := map[string]string{
		"output":              "XR-0",
		"backend":             "x11",
		"dri-dir":             "/dev/dri",
		"shm-path":            "/dev/shm/breezy_desktop_imu",
		"look-ahead-override": "-1",
		"watch-shader":        "true",
	}
	for name, want := range defaults {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, want, flag.DefValue, name)
	}
	assert.Equal(t, "info", cmd.PersistentFlags().Lookup("log-level").DefValue)
}

func TestPipelineConfig(t *testing.T) {
	opts := &RendererOptions{
		Output:              "XR-0",
		ShmPath:             "/dev/shm/breezy_desktop_imu",
		Backend:             "headless",
		StrictLayoutVersion: true,
		LookAheadOverride:   -1,
	}
	cfg, err := opts.pipelineConfig(renderArgs{Width: 1920, Height: 1080, CaptureFPS: 60, RenderFPS: 90})
	require.NoError(t, err)
	assert.Equal(t, gpu.BackendHeadless, cfg.Backend)
	assert.Equal(t, imu.VersionStrict, cfg.VersionPolicy)
	assert.Equal(t, 90.0, cfg.RenderFPS)
	require.NoError(t, cfg.Validate())

	opts.Backend = "wayland"
	_, err = opts.pipelineConfig(renderArgs{Width: 1, Height: 1, CaptureFPS: 1, RenderFPS: 1})
	require.Error(t, err)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("IMU_SHM_PATH", "/tmp/from-env")
	opts, err := NewRendererOptions()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", opts.ShmPath)

	cmd := NewRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--shm-path", "/tmp/from-flag", "--backend", "headless"}))
	shm, err := cmd.Flags().GetString("shm-path")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-flag", shm)
}

func TestIMUDump(t *testing.T) {
	snap := imu.Snapshot{
		Enabled: true,
		Config: imu.DeviceConfig{
			Version:            imu.LayoutVersion,
			DisplayResolution:  [2]uint32{1920, 1080},
			DiagonalFOVDegrees: 46,
		},
		Pose: imu.PoseSample{
			Orientations: [3]xrmath.Quat{xrmath.IdentityQuat, xrmath.IdentityQuat, xrmath.IdentityQuat},
			TimestampMS:  1000,
		},
	}
	path := filepath.Join(t.TempDir(), "imu")
	require.NoError(t, os.WriteFile(path, imu.Encode(snap), 0o600))

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"imu-dump", "--shm-path", path})
	require.NoError(t, cmd.Execute())

	got := out.String()
	assert.Contains(t, got, `"DiagonalFOVDegrees": 46`)
	assert.Contains(t, got, `"TimestampMS": 1000`)
	assert.Contains(t, got, `"pose_age_ms"`)

	reader, err := imu.Open(path)
	require.NoError(t, err)
	defer reader.Close()
	dump := dumpIMU(reader, time.UnixMilli(1250))
	require.NotNil(t, dump.PoseAgeMS)
	assert.Equal(t, int64(250), *dump.PoseAgeMS)
}

func TestPrintFramebuffer(t *testing.T) {
	var out bytes.Buffer
	printFramebuffer(&out, "XR-0", "/dev/dri/renderD128", drm.Framebuffer{
		ID:     42,
		Width:  1920,
		Height: 1080,
		Pitch:  7680,
		Format: 0x34325258,
	})
	got := out.String()
	assert.Contains(t, got, "framebuffer: 42")
	assert.Contains(t, got, "XR24 (GETFB, assumed)")
	assert.Contains(t, got, "/dev/dri/renderD128")
	assert.True(t, strings.Contains(got, "MiB"))
}
