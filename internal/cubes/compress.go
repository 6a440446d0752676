package cubes

import (
	"math"

	"cubesnet-go/internal/bitstream"
)

// Position is quantized per axis to positionBitsPerAxis bits over
// [-positionBound, +positionBound], giving roughly 1mm precision across a
// 2048-unit world — three 21-bit fields, 63 bits total, the same budget the
// original packs into a single 64-bit compressed position.
const (
	positionBitsPerAxis = 21
	positionBound       = 1024.0
	positionSteps       = (1 << positionBitsPerAxis) - 1
)

func quantizeAxis(v float64) int32 {
	if v < -positionBound {
		v = -positionBound
	}
	if v > positionBound {
		v = positionBound
	}
	return int32(math.Round((v + positionBound) / (2 * positionBound) * positionSteps))
}

func dequantizeAxis(q int32) float64 {
	return float64(q)/positionSteps*(2*positionBound) - positionBound
}

// packPosition serializes a quantized position through three bounded
// integer fields rather than three raw floats.
func packPosition(s *bitstream.Stream, v *Vector3) bool {
	var qx, qy, qz int32
	if s.Mode() == bitstream.Write {
		qx = quantizeAxis(v.X)
		qy = quantizeAxis(v.Y)
		qz = quantizeAxis(v.Z)
	}
	if !s.SerializeInteger(&qx, 0, positionSteps) {
		return false
	}
	if !s.SerializeInteger(&qy, 0, positionSteps) {
		return false
	}
	if !s.SerializeInteger(&qz, 0, positionSteps) {
		return false
	}
	if s.Mode() == bitstream.Read {
		v.X = dequantizeAxis(qx)
		v.Y = dequantizeAxis(qy)
		v.Z = dequantizeAxis(qz)
	}
	return true
}

// Orientation uses the smallest-three compression every physics-replication
// engine in this lineage reaches for: drop the largest-magnitude component
// of the unit quaternion (it's always recoverable from the other three plus
// the unit-length constraint), flip the sign of the whole quaternion first
// if that component is negative (q and -q are the same rotation), and pack
// a 2-bit index for which component was dropped plus the remaining three
// components quantized to orientationBitsPerComponent bits each — 32 bits
// total, matching the original's compressed orientation.
const (
	orientationBitsPerComponent = 10
	orientationComponentBound   = 0.70710678118654752440 // 1/sqrt(2): no component of a unit quaternion can exceed this unless it's the largest
	orientationSteps            = (1 << orientationBitsPerComponent) - 1
)

// PackedBits is the exact, fixed number of bits ActiveObject.Pack/Unpack
// always consumes: the quantized position and orientation, the seven raw
// float32 fields (scale, then the six linear and angular velocity axes),
// and the two state bits.
// It's fixed because every field is either a bounded-range quantized
// integer or a raw fixed-width float, never a variable-length encoding —
// callers bounding how many cubes fit in a packet use this instead of
// guessing a per-cube byte size.
const PackedBits = 3*positionBitsPerAxis + // position
	2 + 3*orientationBitsPerComponent + // orientation: dropped-component index + three components
	32 + // scale
	6*32 + // linear + angular velocity
	1 + 1 // enabled, activated

func quantizeComponent(v float64) int32 {
	if v < -orientationComponentBound {
		v = -orientationComponentBound
	}
	if v > orientationComponentBound {
		v = orientationComponentBound
	}
	return int32(math.Round((v + orientationComponentBound) / (2 * orientationComponentBound) * orientationSteps))
}

func dequantizeComponent(q int32) float64 {
	return float64(q)/orientationSteps*(2*orientationComponentBound) - orientationComponentBound
}

func packOrientation(s *bitstream.Stream, q *Quaternion) bool {
	var largest int32
	var a, b, c float64

	if s.Mode() == bitstream.Write {
		components := [4]float64{q.W, q.X, q.Y, q.Z}
		largest = 0
		for i := 1; i < 4; i++ {
			if math.Abs(components[i]) > math.Abs(components[largest]) {
				largest = int32(i)
			}
		}
		if components[largest] < 0 {
			components[0], components[1], components[2], components[3] = -components[0], -components[1], -components[2], -components[3]
		}
		rest := make([]float64, 0, 3)
		for i, v := range components {
			if int32(i) != largest {
				rest = append(rest, v)
			}
		}
		a, b, c = rest[0], rest[1], rest[2]
	}

	if !s.SerializeInteger(&largest, 0, 3) {
		return false
	}
	var qa, qb, qc int32
	if s.Mode() == bitstream.Write {
		qa, qb, qc = quantizeComponent(a), quantizeComponent(b), quantizeComponent(c)
	}
	if !s.SerializeInteger(&qa, 0, orientationSteps) {
		return false
	}
	if !s.SerializeInteger(&qb, 0, orientationSteps) {
		return false
	}
	if !s.SerializeInteger(&qc, 0, orientationSteps) {
		return false
	}

	if s.Mode() == bitstream.Read {
		x, y, z := dequantizeComponent(qa), dequantizeComponent(qb), dequantizeComponent(qc)
		sumSq := x*x + y*y + z*z
		if sumSq > 1 {
			sumSq = 1
		}
		dropped := math.Sqrt(1 - sumSq)
		components := [4]float64{}
		rest := [3]float64{x, y, z}
		ri := 0
		for i := range components {
			if int32(i) == largest {
				components[i] = dropped
			} else {
				components[i] = rest[ri]
				ri++
			}
		}
		q.W, q.X, q.Y, q.Z = components[0], components[1], components[2], components[3]
	}
	return true
}
