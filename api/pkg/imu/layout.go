// Package imu reads head pose and device configuration published by the
// glasses driver into a shared-memory segment.
package imu

// DefaultSegmentPath is where the driver publishes the segment.
const DefaultSegmentPath = "/dev/shm/breezy_desktop_imu"

// LayoutVersion is the segment layout this reader was written against.
const LayoutVersion = 5

// Byte offsets into the segment. All multi-byte values are little-endian.
const (
	offsetVersion             = 0
	offsetEnabled             = offsetVersion + 1
	offsetLookAheadCfg        = offsetEnabled + 1               // 4 x f32
	offsetDisplayRes          = offsetLookAheadCfg + 4*4        // 2 x u32
	offsetDisplayFOV          = offsetDisplayRes + 2*4          // f32, degrees
	offsetLensDistanceRatio   = offsetDisplayFOV + 4            // f32
	offsetSBSEnabled          = offsetLensDistanceRatio + 4     // u8
	offsetCustomBanner        = offsetSBSEnabled + 1            // u8
	offsetSmoothFollowEnabled = offsetCustomBanner + 1          // u8
	offsetSmoothFollowOrigin  = offsetSmoothFollowEnabled + 1   // 16 x f32
	offsetPosePosition        = offsetSmoothFollowOrigin + 16*4 // 3 x f32
	offsetEpochMS             = offsetPosePosition + 3*4        // 2 x u32, low word first
	offsetPoseOrientation     = offsetEpochMS + 2*4             // 16 x f32
	offsetParity              = offsetPoseOrientation + 16*4    // u8

	// LayoutSize is the minimum segment size.
	LayoutSize = offsetParity + 1
)

// The driver rewrites [offsetEpochMS, offsetParity) every IMU sample; the
// parity byte covers exactly that range.
const (
	parityStart = offsetEpochMS
	parityEnd   = offsetParity
)

func parity(buf []byte) byte {
	var p byte
	for _, b := range buf[parityStart:parityEnd] {
		p ^= b
	}
	return p
}
