package tensor

// Unsqueeze inserts a dimension of size 1 at dim.
//
// Example:
//
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
//	u := t.Unsqueeze(1) // Shape: [3, 1, 4]
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	shape := t.Shape()
	if dim < 0 {
		dim += len(shape) + 1
	}
	if dim < 0 || dim > len(shape) {
		panic("Unsqueeze: dimension out of range")
	}
	newShape := make([]int, 0, len(shape)+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)
	return t.Reshape(newShape...)
}

// Squeeze removes a dimension of size 1 at dim.
func (t *Tensor[T, B]) Squeeze(dim int) *Tensor[T, B] {
	shape := t.Shape()
	dim = shape.NormalizeDim(dim)
	if shape[dim] != 1 {
		panic("Squeeze: dimension is not of size 1")
	}
	newShape := make([]int, 0, len(shape)-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)
	return t.Reshape(newShape...)
}

// Where selects elements from x where cond is true and from y otherwise.
// All three operands broadcast to a common shape.
func Where[T DType, B Backend](cond *Tensor[bool, B], x, y *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](x.backend.Where(cond.raw, x.raw, y.raw), x.backend)
}

// And computes the element-wise logical AND of two bool tensors.
func And[B Backend](a, b *Tensor[bool, B]) *Tensor[bool, B] {
	return New[bool, B](a.backend.And(a.raw, b.raw), a.backend)
}

// Not computes the element-wise logical NOT of a bool tensor.
func Not[B Backend](a *Tensor[bool, B]) *Tensor[bool, B] {
	return New[bool, B](a.backend.Not(a.raw), a.backend)
}

// Cast converts a tensor to element type U.
func Cast[U, T DType, B Backend](t *Tensor[T, B]) *Tensor[U, B] {
	return New[U, B](t.backend.Cast(t.raw, dataTypeOf[U]()), t.backend)
}
