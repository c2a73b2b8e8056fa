package renderer

import (
	"fmt"
	"io"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/breezy-desktop/xr-renderer/api/pkg/dmabuf"
	"github.com/breezy-desktop/xr-renderer/api/pkg/drm"
	"github.com/breezy-desktop/xr-renderer/api/pkg/xrandr"
)

func printFramebuffer(w io.Writer, output, node string, fb drm.Framebuffer) {
	source := "GETFB2"
	if !fb.FormatReported {
		source = "GETFB, assumed"
	}
	fmt.Fprintf(w, "output:      %s\n", output)
	fmt.Fprintf(w, "framebuffer: %d\n", fb.ID)
	fmt.Fprintf(w, "device:      %s\n", node)
	fmt.Fprintf(w, "size:        %dx%d\n", fb.Width, fb.Height)
	fmt.Fprintf(w, "pitch:       %d\n", fb.Pitch)
	fmt.Fprintf(w, "format:      %s (%s)\n", dmabuf.FourCC(fb.Format), source)
	fmt.Fprintf(w, "modifier:    %#x\n", fb.Modifier)
	fmt.Fprintf(w, "buffer:      %s\n", units.BytesSize(float64(uint64(fb.Pitch)*uint64(fb.Height))))
}

func newProbeCommand(options *RendererOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Show which framebuffer and DRM node back the XR output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := xrandr.Connect(options.Display)
			if err != nil {
				return err
			}
			defer client.Close()

			fbID, err := client.FramebufferID(options.Output)
			if err != nil {
				return err
			}

			nodes, err := drm.NodeCandidates(options.DRIDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "candidates:  %v\n", nodes)

			dev, err := drm.FindDevice(options.DRIDir, fbID)
			if err != nil {
				return err
			}
			defer dev.Close()

			fb, err := dev.Framebuffer(fbID)
			if err != nil {
				return err
			}
			defer dev.CloseHandle(fb.Handle)

			printFramebuffer(cmd.OutOrStdout(), options.Output, dev.Path(), fb)
			return nil
		},
	}
	cmd.Flags().StringVar(&options.Output, "output", options.Output, "RandR output carrying the XR framebuffer")
	cmd.Flags().StringVar(&options.Display, "display", options.Display, "X display to connect to (default $DISPLAY)")
	cmd.Flags().StringVar(&options.DRIDir, "dri-dir", options.DRIDir, "Directory of DRM device nodes")
	return cmd
}
