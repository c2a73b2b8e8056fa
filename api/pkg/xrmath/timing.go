package xrmath

import "math"

const (
	// SmoothFollowTimelineMS is how long the smooth-follow curve takes to
	// reach SmoothFollowCompletion.
	SmoothFollowTimelineMS = 1000.0
	SmoothFollowCompletion = 0.999
)

// smoothFollowFactor must stay identical to the driver's constant or the
// display drifts out of sync with driver-side smoothing.
var smoothFollowFactor = math.Pow(1.0-SmoothFollowCompletion, 1.0/SmoothFollowTimelineMS)

// SmoothFollowProgress returns how far along the smooth-follow transition is
// after elapsedMS milliseconds, from 0 to approaching 1.
func SmoothFollowProgress(elapsedMS float64) float64 {
	if elapsedMS <= 0 {
		return 0
	}
	return 1.0 - math.Pow(smoothFollowFactor, elapsedMS)
}

// LookAheadMS is the time to project the pose forward: the pose's age plus
// either the override (when >= 0) or the driver-provided constant.
func LookAheadMS(imuTimestampMS, nowMS, constant, override float64) float64 {
	age := math.Max(nowMS-imuTimestampMS, 0)
	if override >= 0 {
		return age + override
	}
	return age + constant
}
