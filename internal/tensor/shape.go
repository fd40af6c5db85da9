package tensor

import (
	"fmt"
	"slices"
)

// Shape lists a tensor's dimension sizes, outermost first. The empty shape
// is a scalar.
type Shape []int

// NumElements is the product of the dimensions.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate rejects zero and negative dimensions.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, s[i])
	}
	return nil
}

func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

func (s Shape) Clone() Shape { return append(Shape{}, s...) }

// ComputeStrides returns row-major strides in elements.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// NormalizeDim maps a possibly negative dimension index into [0, rank).
// Panics if dim is out of range.
func (s Shape) NormalizeDim(dim int) int {
	if dim < 0 {
		dim += len(s)
	}
	if dim < 0 || dim >= len(s) {
		panic(fmt.Sprintf("dimension %d out of range for shape %v", dim, s))
	}
	return dim
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared right to left; two dimensions are compatible when
// they are equal or one of them is 1. Missing dimensions count as 1.
// The boolean result reports whether broadcasting was needed.
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		aIdx := len(a) - 1 - i
		bIdx := len(b) - 1 - i

		aDim := 1
		if aIdx >= 0 {
			aDim = a[aIdx]
		}

		bDim := 1
		if bIdx >= 0 {
			bDim = b[bIdx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}

// BroadcastIndex maps a flat index into the broadcast output shape to the
// flat index of an operand with shape src. src must be broadcast-compatible
// with out.
func BroadcastIndex(flat int, out, src Shape, srcStrides []int) int {
	offset := len(out) - len(src)
	idx := 0
	for d := len(out) - 1; d >= 0; d-- {
		coord := flat % out[d]
		flat /= out[d]
		sd := d - offset
		if sd < 0 {
			continue
		}
		if src[sd] != 1 {
			idx += coord * srcStrides[sd]
		}
	}
	return idx
}
