package imu

import (
	"encoding/binary"
	"math"

	"github.com/breezy-desktop/xr-renderer/api/pkg/xrmath"
)

// PoseSample is a copy of the driver's latest head pose.
type PoseSample struct {
	// OrientationMatrix is the raw 4x4 block: rows 0-2 are the three most
	// recent orientation quaternions (x, y, z, w), row 3 their timestamps.
	OrientationMatrix     [16]float32
	Orientations          [3]xrmath.Quat
	OrientationTimestamps [3]float32
	Position              xrmath.Vec3
	TimestampMS           uint64
}

// Latest returns the newest orientation in the history.
func (p PoseSample) Latest() xrmath.Quat {
	return p.Orientations[0]
}

// DeviceConfig is the slow-changing part of the segment.
type DeviceConfig struct {
	Version             uint8
	LookAheadCfg        [4]float32
	DisplayResolution   [2]uint32
	DiagonalFOVDegrees  float32
	LensDistanceRatio   float32
	SBSEnabled          bool
	CustomBannerEnabled bool
	SmoothFollowEnabled bool
	SmoothFollowOrigin  [16]float32
}

// AspectRatio is width over height of the glasses display, or 0 when the
// driver hasn't reported a resolution.
func (c DeviceConfig) AspectRatio() float64 {
	if c.DisplayResolution[1] == 0 {
		return 0
	}
	return float64(c.DisplayResolution[0]) / float64(c.DisplayResolution[1])
}

// Snapshot is a full segment image.
type Snapshot struct {
	Enabled bool
	Config  DeviceConfig
	Pose    PoseSample
}

func readF32(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func putF32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}

func readF32s(dst []float32, buf []byte, off int) {
	for i := range dst {
		dst[i] = readF32(buf, off+i*4)
	}
}

func putF32s(buf []byte, off int, src []float32) {
	for i, v := range src {
		putF32(buf, off+i*4, v)
	}
}

func decodeConfig(buf []byte) DeviceConfig {
	c := DeviceConfig{
		Version:             buf[offsetVersion],
		DiagonalFOVDegrees:  readF32(buf, offsetDisplayFOV),
		LensDistanceRatio:   readF32(buf, offsetLensDistanceRatio),
		SBSEnabled:          buf[offsetSBSEnabled] != 0,
		CustomBannerEnabled: buf[offsetCustomBanner] != 0,
		SmoothFollowEnabled: buf[offsetSmoothFollowEnabled] != 0,
	}
	readF32s(c.LookAheadCfg[:], buf, offsetLookAheadCfg)
	c.DisplayResolution[0] = binary.LittleEndian.Uint32(buf[offsetDisplayRes:])
	c.DisplayResolution[1] = binary.LittleEndian.Uint32(buf[offsetDisplayRes+4:])
	readF32s(c.SmoothFollowOrigin[:], buf, offsetSmoothFollowOrigin)
	return c
}

func decodePose(buf []byte) PoseSample {
	var p PoseSample
	readF32s(p.OrientationMatrix[:], buf, offsetPoseOrientation)
	for i := 0; i < 3; i++ {
		row := p.OrientationMatrix[i*4 : i*4+4]
		p.Orientations[i] = xrmath.Quat{float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])}
		p.OrientationTimestamps[i] = p.OrientationMatrix[12+i]
	}
	for i := 0; i < 3; i++ {
		p.Position[i] = float64(readF32(buf, offsetPosePosition+i*4))
	}
	low := binary.LittleEndian.Uint32(buf[offsetEpochMS:])
	high := binary.LittleEndian.Uint32(buf[offsetEpochMS+4:])
	p.TimestampMS = uint64(high)<<32 | uint64(low)
	return p
}

// Encode renders s into a segment image with a valid parity byte, the way the
// driver writes it. Orientations and OrientationTimestamps take precedence
// over OrientationMatrix when set.
func Encode(s Snapshot) []byte {
	buf := make([]byte, LayoutSize)
	c := s.Config

	buf[offsetVersion] = c.Version
	if s.Enabled {
		buf[offsetEnabled] = 1
	}
	putF32s(buf, offsetLookAheadCfg, c.LookAheadCfg[:])
	binary.LittleEndian.PutUint32(buf[offsetDisplayRes:], c.DisplayResolution[0])
	binary.LittleEndian.PutUint32(buf[offsetDisplayRes+4:], c.DisplayResolution[1])
	putF32(buf, offsetDisplayFOV, c.DiagonalFOVDegrees)
	putF32(buf, offsetLensDistanceRatio, c.LensDistanceRatio)
	buf[offsetSBSEnabled] = boolByte(c.SBSEnabled)
	buf[offsetCustomBanner] = boolByte(c.CustomBannerEnabled)
	buf[offsetSmoothFollowEnabled] = boolByte(c.SmoothFollowEnabled)
	putF32s(buf, offsetSmoothFollowOrigin, c.SmoothFollowOrigin[:])

	p := s.Pose
	for i := 0; i < 3; i++ {
		putF32(buf, offsetPosePosition+i*4, float32(p.Position[i]))
	}
	binary.LittleEndian.PutUint32(buf[offsetEpochMS:], uint32(p.TimestampMS))
	binary.LittleEndian.PutUint32(buf[offsetEpochMS+4:], uint32(p.TimestampMS>>32))

	matrix := p.OrientationMatrix
	for i, q := range p.Orientations {
		if q == (xrmath.Quat{}) {
			continue
		}
		for j := 0; j < 4; j++ {
			matrix[i*4+j] = float32(q[j])
		}
	}
	for i, ts := range p.OrientationTimestamps {
		if ts != 0 {
			matrix[12+i] = ts
		}
	}
	putF32s(buf, offsetPoseOrientation, matrix[:])

	buf[offsetParity] = parity(buf)
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
