package xrmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatGeometry(t *testing.T) {
	g := GeometryFor(false)

	edge := g.EdgeDistance(4, 6)
	assert.InDelta(t, 5.0, edge, 1e-12)
	assert.InDelta(t, 4.0, g.CenterDistance(edge, 6), 1e-12)

	// a screen that spans the full edge-to-edge length subtends the angle
	// between its two edges
	assert.InDelta(t, 2*math.Asin(3.0/5.0), g.LengthToRadians(0, 0, edge, 6), 1e-12)
	assert.InDelta(t, 2.5, g.AngleToLength(0, 0, 5, 1, 2), 1e-12)
	assert.Equal(t, 1, g.Segments(math.Pi))
}

func TestCurvedGeometry(t *testing.T) {
	g := GeometryFor(true)

	assert.InDelta(t, 4.0, g.EdgeDistance(4, 6), 0)
	assert.InDelta(t, 4.0, g.CenterDistance(4, 6), 0)

	fov := DegreeToRadian(90)
	// distance-independent: same answer at any edge distance
	assert.InDelta(t, fov/2, g.LengthToRadians(fov, 2, 1, 1), 1e-12)
	assert.InDelta(t, fov/2, g.LengthToRadians(fov, 2, 100, 1), 1e-12)
	assert.InDelta(t, 2.0/fov*math.Atan2(1, 1), g.AngleToLength(fov, 2, 7, 1, 1), 1e-12)

	tests := []struct {
		radians float64
		want    int
	}{
		{radians: math.Pi / 2, want: 20},
		{radians: math.Pi / 4, want: 10},
		{radians: math.Pi/2 + 0.001, want: 21},
		{radians: 0.01, want: 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.Segments(tt.radians), "radians=%v", tt.radians)
	}
}

func TestAdjustDisplayDistanceForMonitorSize(t *testing.T) {
	assert.InDelta(t, 1.0, AdjustDisplayDistanceForMonitorSize(1, 1920, 1080, 1920, 1080), 1e-12)
	// a monitor twice as wide must be pushed back, width dominates
	assert.InDelta(t, 0.5, AdjustDisplayDistanceForMonitorSize(1, 1920, 1080, 3840, 1080), 1e-12)
	assert.InDelta(t, 2.0, AdjustDisplayDistanceForMonitorSize(1, 1920, 1080, 960, 540), 1e-12)
	assert.InDelta(t, 1.5, AdjustDisplayDistanceForMonitorSize(1.5, 0, 1080, 960, 540), 0)
}

func TestScalePositionByDistance(t *testing.T) {
	got := ScalePositionByDistance(Vec3{1, -2, 3}, 2, 1)
	assert.Equal(t, Vec3{2, -4, 6}, got)
	assert.Equal(t, Vec3{1, 1, 1}, ScalePositionByDistance(Vec3{1, 1, 1}, 2, 0))
}
