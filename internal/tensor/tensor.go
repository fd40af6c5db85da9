package tensor

import "fmt"

// Tensor is a RawTensor with a static element type T, bound to backend B.
// Operations dispatch to B, so wrapping a backend (for example with the
// autodiff tape) changes how every op on the tensor is executed.
//
//	b := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{3, 4}, b)
//	y := x.Add(x)
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New binds raw to backend b. raw's dtype must match T.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if want := shape.NumElements(); want != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, want, len(data))
	}
	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		return nil, err
	}
	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

func (t *Tensor[T, B]) Shape() Shape { return t.raw.Shape() }
func (t *Tensor[T, B]) DType() DataType { return t.raw.DType() }
func (t *Tensor[T, B]) Device() Device { return t.raw.Device() }
func (t *Tensor[T, B]) NumElements() int { return t.raw.NumElements() }

// Raw returns the untyped storage.
func (t *Tensor[T, B]) Raw() *RawTensor { return t.raw }

// Backend returns the backend the tensor's ops run on.
func (t *Tensor[T, B]) Backend() B { return t.backend }

// Data returns the elements as a slice sharing the tensor's memory.
func (t *Tensor[T, B]) Data() []T {
	return elements[T](t.raw, dataTypeOf[T]())
}

// Item returns the only element of a one-element tensor.
func (t *Tensor[T, B]) Item() T {
	if n := t.NumElements(); n != 1 {
		panic(fmt.Sprintf("Item: tensor of shape %v has %d elements", t.Shape(), n))
	}
	return t.Data()[0]
}

// At returns the element at indices, one per dimension.
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.flatIndex(indices)]
}

// Set stores value at indices, one per dimension.
func (t *Tensor[T, B]) Set(value T, indices ...int) {
	t.Data()[t.flatIndex(indices)] = value
}

func (t *Tensor[T, B]) flatIndex(indices []int) int {
	shape, strides := t.Shape(), t.raw.Strides()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("index: got %d indices for shape %v", len(indices), shape))
	}
	flat := 0
	for d, i := range indices {
		if i < 0 || i >= shape[d] {
			panic(fmt.Sprintf("index: %d out of range for dimension %d of %v", i, d, shape))
		}
		flat += i * strides[d]
	}
	return flat
}

func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}

// Clone deep-copies the tensor. The copy has no recorded history.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return New[T, B](t.raw.Clone(), t.backend)
}
