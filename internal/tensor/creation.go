package tensor

import (
	"math/rand/v2"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones (true for bool).
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var one T
	switch any(one).(type) {
	case float32:
		one = any(float32(1)).(T)
	case int32:
		one = any(int32(1)).(T)
	case bool:
		one = any(true).(T)
	}
	return Full[T, B](shape, one, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a float32 tensor with values drawn from N(0, 1).
//
// The generator is passed explicitly so that model initialization is
// reproducible from a seed.
//
// Example:
//
//	rng := rand.New(rand.NewPCG(42, 0))
//	t := tensor.Randn[float32](Shape{100, 100}, rng, backend)
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data, ok := any(t.Data()).([]float32)
	if !ok {
		panic("Randn only supports float32")
	}
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return t
}

// Rand creates a float32 tensor with values uniformly distributed in [0, 1).
func Rand[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data, ok := any(t.Data()).([]float32)
	if !ok {
		panic("Rand only supports float32")
	}
	for i := range data {
		data[i] = rng.Float32()
	}
	return t
}

// Arange creates a 1D int32 tensor with values [start, end).
func Arange[B Backend](start, end int32, b B) *Tensor[int32, B] {
	if end <= start {
		panic("Arange: end must be greater than start")
	}
	t := Zeros[int32, B](Shape{int(end - start)}, b)
	data := t.Data()
	for i := range data {
		data[i] = start + int32(i)
	}
	return t
}

// NewRNG returns a deterministic generator for the given seed.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // G404: reproducible init, not security
}
