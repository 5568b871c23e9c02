// Package calibration solves the Sensor Alignment Calibrator's
// orthogonal Procrustes problem: given synchronized position samples
// from a sensor and a reference, recover the rigid-body transform that
// best maps one onto the other, per spec.md §4.10.
//
// No linear-algebra/SVD library exists anywhere in the corpus, so this
// uses Horn's closed-form quaternion method instead of the original's
// SVD-based Kabsch solve: the cross-covariance matrix is reduced to a
// symmetric 4x4 matrix whose dominant eigenvector (found via the
// Jacobi eigenvalue algorithm, a handful of plane rotations — no
// matrix-library dependency needed) is the optimal rotation quaternion.
package calibration

import (
	"fmt"
	"math"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/hil"
)

// MinSamplesPerSensor is the minimum number of synchronized position
// samples required per sensor, per spec.md §4.10.
const MinSamplesPerSensor = 10

// ConfidenceThreshold is the minimum confidence for a successful
// alignment.
const ConfidenceThreshold = 0.8

// Result is one sensor's alignment outcome.
type Result struct {
	Sensor            string
	Success           bool
	Transform         hil.CalibrationMatrix
	ResidualError      float64
	Confidence        float64
}

// Sample is one synchronized (reference, sensor) position pair.
type Sample struct {
	Reference [3]float64
	Sensor    [3]float64
}

// AlignToReference solves for the rigid-body transform mapping samples'
// Sensor points onto Reference points. Requires at least
// MinSamplesPerSensor pairs.
func AlignToReference(sensorName string, samples []Sample) (Result, error) {
	if len(samples) < MinSamplesPerSensor {
		return Result{}, fmt.Errorf("calibration: %s needs >= %d samples, got %d", sensorName, MinSamplesPerSensor, len(samples))
	}

	refCentroid := centroid(samples, func(s Sample) [3]float64 { return s.Reference })
	sensorCentroid := centroid(samples, func(s Sample) [3]float64 { return s.Sensor })

	h := crossCovariance(samples, refCentroid, sensorCentroid)
	rotation := solveRotation(h)
	translation := subtract(refCentroid, applyRotation(rotation, sensorCentroid))

	var errSum float64
	for _, s := range samples {
		transformed := add(applyRotation(rotation, s.Sensor), translation)
		errSum += norm(subtract(s.Reference, transformed))
	}
	residual := errSum / float64(len(samples))

	meanRefNorm := 0.0
	for _, s := range samples {
		meanRefNorm += norm(s.Reference)
	}
	meanRefNorm /= float64(len(samples))

	confidence := 1.0
	if meanRefNorm > 0 {
		confidence = 1.0 - math.Min(1.0, residual/meanRefNorm)
	}

	return Result{
		Sensor:        sensorName,
		Success:       confidence > ConfidenceThreshold,
		Transform:     toTransform(rotation, translation),
		ResidualError: residual,
		Confidence:    confidence,
	}, nil
}

func centroid(samples []Sample, pick func(Sample) [3]float64) [3]float64 {
	var sum [3]float64
	for _, s := range samples {
		p := pick(s)
		sum[0] += p[0]
		sum[1] += p[1]
		sum[2] += p[2]
	}
	n := float64(len(samples))
	return [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}
}

// crossCovariance computes H = sum((sensor_i - sensor_centroid) outer (ref_i - ref_centroid)),
// so that Horn's method yields the rotation taking sensor points onto reference points.
func crossCovariance(samples []Sample, refCentroid, sensorCentroid [3]float64) [3][3]float64 {
	var h [3][3]float64
	for _, s := range samples {
		r := subtract(s.Reference, refCentroid)
		q := subtract(s.Sensor, sensorCentroid)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				h[i][j] += q[i] * r[j]
			}
		}
	}
	return h
}

func subtract(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func add(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func applyRotation(r [3][3]float64, v [3]float64) [3]float64 {
	return [3]float64{
		r[0][0]*v[0] + r[0][1]*v[1] + r[0][2]*v[2],
		r[1][0]*v[0] + r[1][1]*v[1] + r[1][2]*v[2],
		r[2][0]*v[0] + r[2][1]*v[1] + r[2][2]*v[2],
	}
}

func toTransform(r [3][3]float64, t [3]float64) hil.CalibrationMatrix {
	var m hil.CalibrationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = r[i][j]
		}
		m[i][3] = t[i]
	}
	m[3] = [4]float64{0, 0, 0, 1}
	return m
}

// solveRotation implements Horn's closed-form method: build the
// symmetric 4x4 matrix N from H, find its largest-eigenvalue
// eigenvector via Jacobi rotations, and convert that unit quaternion to
// a rotation matrix.
func solveRotation(h [3][3]float64) [3][3]float64 {
	sxx, sxy, sxz := h[0][0], h[0][1], h[0][2]
	syx, syy, syz := h[1][0], h[1][1], h[1][2]
	szx, szy, szz := h[2][0], h[2][1], h[2][2]

	n := [4][4]float64{
		{sxx + syy + szz, syz - szy, szx - sxz, sxy - syx},
		{syz - szy, sxx - syy - szz, sxy + syx, szx + sxz},
		{szx - sxz, sxy + syx, -sxx + syy - szz, syz + szy},
		{sxy - syx, szx + sxz, syz + szy, -sxx - syy + szz},
	}

	q := largestEigenvector(n)
	return quaternionToRotation(q)
}

// largestEigenvector returns a unit eigenvector for the symmetric
// matrix m's largest eigenvalue, via Jacobi rotations that each zero the
// largest remaining off-diagonal element (symmetric 4x4, a few dozen
// rotations suffice).
func largestEigenvector(m [4][4]float64) [4]float64 {
	a := m
	var v [4][4]float64
	for i := range v {
		v[i][i] = 1
	}

	const sweeps = 50
	for iter := 0; iter < sweeps; iter++ {
		p, q := offDiagonalMax(a)
		if p < 0 {
			break
		}
		jacobiRotate(&a, &v, p, q)
	}

	best := 0
	for i := 1; i < 4; i++ {
		if a[i][i] > a[best][best] {
			best = i
		}
	}
	return [4]float64{v[0][best], v[1][best], v[2][best], v[3][best]}
}

func offDiagonalMax(a [4][4]float64) (p, q int) {
	p, q = -1, -1
	max := 1e-12
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if math.Abs(a[i][j]) > max {
				max = math.Abs(a[i][j])
				p, q = i, j
			}
		}
	}
	return p, q
}

func jacobiRotate(a, v *[4][4]float64, p, q int) {
	if a[p][q] == 0 {
		return
	}
	theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
	t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
	c := 1 / math.Sqrt(t*t+1)
	s := t * c

	app, aqq, apq := a[p][p], a[q][q], a[p][q]
	a[p][p] = c*c*app - 2*s*c*apq + s*s*aqq
	a[q][q] = s*s*app + 2*s*c*apq + c*c*aqq
	a[p][q] = 0
	a[q][p] = 0

	for i := 0; i < 4; i++ {
		if i != p && i != q {
			aip, aiq := a[i][p], a[i][q]
			a[i][p] = c*aip - s*aiq
			a[p][i] = a[i][p]
			a[i][q] = s*aip + c*aiq
			a[q][i] = a[i][q]
		}
		vip, viq := v[i][p], v[i][q]
		v[i][p] = c*vip - s*viq
		v[i][q] = s*vip + c*viq
	}
}

// quaternionToRotation converts unit quaternion q=(w,x,y,z) to a
// rotation matrix.
func quaternionToRotation(q [4]float64) [3][3]float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	n := math.Sqrt(w*w + x*x + y*y + z*z)
	if n > 0 {
		w, x, y, z = w/n, x/n, y/n, z/n
	}

	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}
