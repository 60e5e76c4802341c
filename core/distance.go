package core

import (
	"fmt"
	"math"
	"sort"
)

// Distances is a map of human-readable names to distance functions.
// A collection picks exactly one of them by name at creation time.
var Distances = map[string]DistanceFunc{
	"squared_euclidean": SquaredEuclidean,
	"euclidean":         Euclidean,
	"manhattan":         Manhattan,
	"cosine":            CosineDistance,
}

// DefaultDistance is the metric used when none is configured.
const DefaultDistance = "squared_euclidean"

// DistanceFunc computes the distance between two vectors of equal length.
// Implementations do not check lengths; callers check with CheckDimension.
type DistanceFunc func(a, b []float32) float64

// LookupDistance resolves a distance function by name.
func LookupDistance(name string) (DistanceFunc, error) {
	if name == "" {
		name = DefaultDistance
	}
	fn, ok := Distances[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDistance, name, DistanceNames())
	}
	return fn, nil
}

// DistanceNames returns the registered distance names in sorted order.
func DistanceNames() []string {
	names := make([]string, 0, len(Distances))
	for name := range Distances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SquaredEuclidean computes the squared Euclidean distance between two vectors.
// Only relative ordering matters for nearest-neighbor comparisons, so the square root is skipped.
func SquaredEuclidean(a, b []float32) float64 {
	return squaredEuclideanKernel(a, b)
}

// Euclidean computes the Euclidean (L2) distance between two vectors.
func Euclidean(a, b []float32) float64 {
	return math.Sqrt(squaredEuclideanKernel(a, b))
}

// Manhattan computes the Manhattan (L1) distance between two vectors.
func Manhattan(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum
}

// CosineDistance computes 1 - cos(a, b). Zero vectors are at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	if d < 0 {
		return 0
	}
	return d
}

func squaredEuclideanScalar(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// squaredEuclideanUnrolled keeps four independent accumulators so wide cores can overlap the adds.
func squaredEuclideanUnrolled(a, b []float32) float64 {
	var s0, s1, s2, s3 float64
	n := len(a)
	b = b[:n]
	i := 0
	for ; i+4 <= n; i += 4 {
		d0 := float64(a[i]) - float64(b[i])
		d1 := float64(a[i+1]) - float64(b[i+1])
		d2 := float64(a[i+2]) - float64(b[i+2])
		d3 := float64(a[i+3]) - float64(b[i+3])
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		s0 += d * d
	}
	return (s0 + s1) + (s2 + s3)
}
