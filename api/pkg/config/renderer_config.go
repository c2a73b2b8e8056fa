package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type RendererConfig struct {
	Capture  Capture
	IMU      IMU
	Render   Render
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" description:"One of trace, debug, info, warn, error"`
}

func LoadRendererConfig() (RendererConfig, error) {
	var cfg RendererConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		return RendererConfig{}, err
	}
	return cfg, nil
}

// DefaultRendererConfig is what LoadRendererConfig returns with none of its
// variables set. It keeps the same values as the default tags.
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		Capture: Capture{
			Output:        "XR-0",
			DRIDir:        "/dev/dri",
			RetryAttempts: 3,
			RetryDelay:    5 * time.Millisecond,
		},
		IMU: IMU{
			ShmPath: "/dev/shm/breezy_desktop_imu",
		},
		Render: Render{
			Backend:           "x11",
			WatchShader:       true,
			LookAheadOverride: -1,
		},
		LogLevel: "info",
	}
}

type Capture struct {
	Output  string `envconfig:"XR_OUTPUT" default:"XR-0" description:"RandR output the compositor renders the virtual display to."`
	Display string `envconfig:"DISPLAY" default:""`
	DRIDir  string `envconfig:"DRI_DIR" default:"/dev/dri"`

	RetryAttempts uint          `envconfig:"CAPTURE_RETRY_ATTEMPTS" default:"3"`
	RetryDelay    time.Duration `envconfig:"CAPTURE_RETRY_DELAY" default:"5ms"`
}

type IMU struct {
	ShmPath             string `envconfig:"IMU_SHM_PATH" default:"/dev/shm/breezy_desktop_imu"`
	StrictLayoutVersion bool   `envconfig:"IMU_STRICT_LAYOUT_VERSION" default:"false" description:"Treat snapshots with an unknown layout version as absent instead of warning."`
	WaitForDriver       bool   `envconfig:"IMU_WAIT_FOR_DRIVER" default:"false"`
}

type Render struct {
	Backend    string `envconfig:"RENDER_BACKEND" default:"x11" description:"One of x11 or headless"`
	ShaderPath string `envconfig:"SHADER_PATH" default:""`
	// WatchShader reloads the shader when the file changes
	WatchShader bool `envconfig:"SHADER_WATCH" default:"true"`

	LookAheadOverride float64 `envconfig:"LOOK_AHEAD_OVERRIDE" default:"-1" description:"Look-ahead constant in ms, negative to use the driver's value."`
	DisplayDistance   float64 `envconfig:"DISPLAY_DISTANCE" default:"0"`
	Curved            bool    `envconfig:"CURVED_DISPLAY" default:"false"`
}
