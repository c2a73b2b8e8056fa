package renderer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/breezy-desktop/xr-renderer/api/pkg/imu"
)

type imuDump struct {
	Path   string            `json:"path"`
	Config *imu.DeviceConfig `json:"config,omitempty"`
	Pose   *imu.PoseSample   `json:"pose,omitempty"`
	// PoseAgeMS is how old the pose was when it was read.
	PoseAgeMS *int64    `json:"pose_age_ms,omitempty"`
	Stats     imu.Stats `json:"stats"`
}

func dumpIMU(reader *imu.Reader, now time.Time) imuDump {
	dump := imuDump{Path: reader.Path()}
	if cfg, ok := reader.ReadConfig(); ok {
		dump.Config = &cfg
	}
	if pose, ok := reader.ReadPose(); ok {
		dump.Pose = &pose
		age := now.UnixMilli() - int64(pose.TimestampMS)
		dump.PoseAgeMS = &age
	}
	dump.Stats = reader.Stats()
	return dump
}

func newIMUDumpCommand(options *RendererOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imu-dump",
		Short: "Print the IMU driver's current pose and config as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader, err := imu.Open(options.ShmPath, imu.WithVersionPolicy(options.versionPolicy()))
			if err != nil {
				return err
			}
			defer reader.Close()

			data, err := json.MarshalIndent(dumpIMU(reader, time.Now()), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&options.ShmPath, "shm-path", options.ShmPath, "IMU driver shared memory segment")
	cmd.Flags().BoolVar(&options.StrictLayoutVersion, "strict-layout-version", options.StrictLayoutVersion,
		"Ignore IMU snapshots with an unexpected layout version")
	return cmd
}
