package terrain

import (
	"math"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

const (
	llh_ecef_radiusX = 6378137.0
	llh_ecef_radiusY = 6378137.0
	llh_ecef_radiusZ = 6356752.3142451793

	llh_ecef_rX = 1.0 / llh_ecef_radiusX
	llh_ecef_rY = 1.0 / llh_ecef_radiusY
	llh_ecef_rZ = 1.0 / llh_ecef_radiusZ
)

// NewBoundingSphere returns the smaller of Ritter's sphere and the sphere
// centered on the axis aligned box of points.
func NewBoundingSphere(points []vec3d.T) BoundingSphere {
	if len(points) == 0 {
		return BoundingSphere{}
	}

	var minPt, maxPt [3]vec3d.T
	for i := range minPt {
		minPt[i] = points[0]
		maxPt[i] = points[0]
	}
	for _, p := range points {
		for axis := 0; axis < 3; axis++ {
			if p[axis] < minPt[axis][axis] {
				minPt[axis] = p
			}
			if p[axis] > maxPt[axis][axis] {
				maxPt[axis] = p
			}
		}
	}

	diameter := 0
	maxSpan := -1.0
	for axis := 0; axis < 3; axis++ {
		if span := vec3d.SquareDistance(&maxPt[axis], &minPt[axis]); span > maxSpan {
			maxSpan = span
			diameter = axis
		}
	}

	ritterCenter := vec3d.Interpolate(&minPt[diameter], &maxPt[diameter], 0.5)
	radiusSqr := vec3d.SquareDistance(&maxPt[diameter], &ritterCenter)
	ritterRadius := math.Sqrt(radiusSqr)

	boxMin := vec3d.T{minPt[0][0], minPt[1][1], minPt[2][2]}
	boxMax := vec3d.T{maxPt[0][0], maxPt[1][1], maxPt[2][2]}
	naiveCenter := vec3d.Interpolate(&boxMin, &boxMax, 0.5)
	naiveRadius := 0.0

	for i := range points {
		p := &points[i]
		if r := vec3d.Distance(p, &naiveCenter); r > naiveRadius {
			naiveRadius = r
		}

		toPointSqr := vec3d.SquareDistance(p, &ritterCenter)
		if toPointSqr > radiusSqr {
			toPoint := math.Sqrt(toPointSqr)
			ritterRadius = (ritterRadius + toPoint) * 0.5
			radiusSqr = ritterRadius * ritterRadius
			oldToNew := toPoint - ritterRadius
			for axis := 0; axis < 3; axis++ {
				ritterCenter[axis] = (ritterRadius*ritterCenter[axis] + oldToNew*p[axis]) / toPoint
			}
		}
	}

	if ritterRadius < naiveRadius {
		return BoundingSphere{Center: ritterCenter, Radius: ritterRadius}
	}
	return BoundingSphere{Center: naiveCenter, Radius: naiveRadius}
}

func ellipsoidScaled(p vec3d.T) vec3d.T {
	return vec3d.T{p[0] * llh_ecef_rX, p[1] * llh_ecef_rY, p[2] * llh_ecef_rZ}
}

// HorizonOcclusionPoint computes the point in ellipsoid scaled space that is
// hidden below the horizon only when every one of points is.
func HorizonOcclusionPoint(points []vec3d.T, sphere BoundingSphere) vec3d.T {
	if len(points) == 0 {
		return vec3d.T{}
	}
	scaledCenter := ellipsoidScaled(sphere.Center)
	maxMagnitude := -math.MaxFloat64
	for _, p := range points {
		if m := ocp_computeMagnitude(ellipsoidScaled(p), scaledCenter); m > maxMagnitude {
			maxMagnitude = m
		}
	}
	return scaledCenter.Scaled(maxMagnitude)
}

func ocp_computeMagnitude(position vec3d.T, sphereCenter vec3d.T) float64 {
	magnitudeSquared := position.LengthSqr()
	magnitude := math.Sqrt(magnitudeSquared)
	direction := position.Scaled(1 / magnitude)

	// points below the ellipsoid are treated as lying on it
	magnitudeSquared = math.Max(1.0, magnitudeSquared)
	magnitude = math.Max(1.0, magnitude)

	cosAlpha := vec3d.Dot(&direction, &sphereCenter)
	sv := vec3d.Cross(&direction, &sphereCenter)
	sinAlpha := sv.Length()
	cosBeta := 1.0 / magnitude
	sinBeta := math.Sqrt(magnitudeSquared-1.0) * cosBeta

	return 1.0 / (cosAlpha*cosBeta - sinAlpha*sinBeta)
}
