package core

import (
	"math"
	"runtime"
	"sync"
)

// Norm returns the Euclidean length of vec.
func Norm(vec []float32) float64 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// NormalizeVector scales vec in place to unit length. Zero vectors are left untouched.
func NormalizeVector(vec []float32) {
	n := Norm(vec)
	if n == 0 {
		return
	}
	inv := 1 / n
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}

// NormalizeBatch normalizes multiple vectors in place, spreading the work over the CPUs.
func NormalizeBatch(vecs [][]float32) {
	if len(vecs) == 0 {
		return
	}
	workers := runtime.NumCPU()
	if workers > len(vecs) {
		workers = len(vecs)
	}
	chunk := (len(vecs) + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < len(vecs); start += chunk {
		end := min(start+chunk, len(vecs))
		wg.Add(1)
		go func(part [][]float32) {
			defer wg.Done()
			for _, v := range part {
				NormalizeVector(v)
			}
		}(vecs[start:end])
	}
	wg.Wait()
}
