package xrmath

import "math"

// segmentsPerRightAngle is how finely a curved display is tessellated.
const segmentsPerRightAngle = 20.0

// DisplayGeometry converts between lengths and angles on the virtual screen.
// Flat screens depend on viewing distance; curved screens wrap around the
// viewer at a constant radius so the same length always spans the same angle.
type DisplayGeometry interface {
	// EdgeDistance is the distance from the viewer to the screen edge given
	// the distance to its center and the full screen length.
	EdgeDistance(centerDistance, fovLength float64) float64
	// CenterDistance inverts EdgeDistance.
	CenterDistance(edgeDistance, screenLength float64) float64
	LengthToRadians(fovRadians, fovLength, screenEdgeDistance, toLength float64) float64
	AngleToLength(fovRadians, fovLength, screenEdgeDistance, toAngleOpposite, toAngleAdjacent float64) float64
	Segments(screenRadians float64) int
}

// GeometryFor returns the geometry matching the curved-display setting.
func GeometryFor(curved bool) DisplayGeometry {
	if curved {
		return CurvedGeometry{}
	}
	return FlatGeometry{}
}

type FlatGeometry struct{}

func (FlatGeometry) EdgeDistance(centerDistance, fovLength float64) float64 {
	return math.Sqrt(math.Pow(fovLength/2.0, 2) + math.Pow(centerDistance, 2))
}

func (FlatGeometry) CenterDistance(edgeDistance, screenLength float64) float64 {
	return math.Sqrt(math.Pow(edgeDistance, 2) - math.Pow(screenLength/2.0, 2))
}

func (FlatGeometry) LengthToRadians(_, _, screenEdgeDistance, toLength float64) float64 {
	return math.Asin(toLength/2.0/screenEdgeDistance) * 2.0
}

func (FlatGeometry) AngleToLength(_, _, screenEdgeDistance, toAngleOpposite, toAngleAdjacent float64) float64 {
	return toAngleOpposite / toAngleAdjacent * screenEdgeDistance
}

func (FlatGeometry) Segments(float64) int {
	return 1
}

type CurvedGeometry struct{}

func (CurvedGeometry) EdgeDistance(centerDistance, _ float64) float64 {
	return centerDistance
}

func (CurvedGeometry) CenterDistance(edgeDistance, _ float64) float64 {
	return edgeDistance
}

func (CurvedGeometry) LengthToRadians(fovRadians, fovLength, _, toLength float64) float64 {
	return fovRadians / fovLength * toLength
}

func (CurvedGeometry) AngleToLength(fovRadians, fovLength, _, toAngleOpposite, toAngleAdjacent float64) float64 {
	return fovLength / fovRadians * math.Atan2(toAngleOpposite, toAngleAdjacent)
}

func (CurvedGeometry) Segments(screenRadians float64) int {
	return int(math.Ceil(screenRadians * segmentsPerRightAngle / (math.Pi / 2.0)))
}

// AdjustDisplayDistanceForMonitorSize scales the base display distance so a
// monitor of screenWidth x screenHeight pixels fills the same angular space
// as the glasses' native fovWidth x fovHeight.
func AdjustDisplayDistanceForMonitorSize(baseDistance, fovWidth, fovHeight, screenWidth, screenHeight float64) float64 {
	if fovWidth <= 0 || fovHeight <= 0 {
		return baseDistance
	}
	scale := math.Max(screenWidth/fovWidth, screenHeight/fovHeight)
	if scale <= 0 {
		return baseDistance
	}
	return baseDistance / scale
}

// ScalePositionByDistance moves a position vector proportionally to how far
// the display sits relative to its default distance.
func ScalePositionByDistance(position Vec3, currentDistance, defaultDistance float64) Vec3 {
	if defaultDistance == 0 {
		return position
	}
	return position.Scale(currentDistance / defaultDistance)
}
