package tensor

import (
	"fmt"
	"unsafe"
)

// Device identifies where tensor memory lives. Only the CPU is supported.
type Device int

// CPU is host memory.
const CPU Device = 0

func (d Device) String() string {
	if d == CPU {
		return "CPU"
	}
	return fmt.Sprintf("Device(%d)", int(d))
}

// RawTensor is the type-erased storage behind every Tensor: a contiguous
// row-major byte buffer plus its layout. Backends operate on RawTensors;
// the generic Tensor wrapper only adds static element typing.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw allocates a zeroed buffer for shape. Every dimension must be positive.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return layout(make([]byte, shape.NumElements()*dtype.Size()), shape, dtype, device), nil
}

// MustNewRaw is NewRaw for shapes the caller has already checked.
func MustNewRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

func layout(data []byte, shape Shape, dtype DataType, device Device) *RawTensor {
	return &RawTensor{
		data:   data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}
}

func (r *RawTensor) Shape() Shape { return r.shape }
func (r *RawTensor) Strides() []int { return r.stride }
func (r *RawTensor) DType() DataType { return r.dtype }
func (r *RawTensor) Device() Device { return r.device }
func (r *RawTensor) NumElements() int { return r.shape.NumElements() }
func (r *RawTensor) ByteSize() int { return len(r.data) }

// Data exposes the underlying bytes. Writes are visible to every view.
func (r *RawTensor) Data() []byte { return r.data }

// AsFloat32 reinterprets the buffer as float32 values without copying.
func (r *RawTensor) AsFloat32() []float32 { return elements[float32](r, Float32) }

// AsInt32 reinterprets the buffer as int32 values without copying.
func (r *RawTensor) AsInt32() []int32 { return elements[int32](r, Int32) }

// AsBool reinterprets the buffer as bool values without copying.
func (r *RawTensor) AsBool() []bool { return elements[bool](r, Bool) }

// elements panics when r does not hold want.
func elements[E DType](r *RawTensor, want DataType) []E {
	if r.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, want))
	}
	//nolint:gosec // length is derived from the buffer's own element count
	return unsafe.Slice((*E)(unsafe.Pointer(unsafe.SliceData(r.data))), r.NumElements())
}

// Clone copies the buffer into fresh memory.
func (r *RawTensor) Clone() *RawTensor {
	return layout(append([]byte(nil), r.data...), r.shape, r.dtype, r.device)
}

// View reinterprets r with a new shape of the same element count.
// The result shares memory with r.
func (r *RawTensor) View(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot view %v as %v: element count mismatch", r.shape, shape)
	}
	return layout(r.data, shape, r.dtype, r.device), nil
}

func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor(shape=%v, dtype=%s, device=%s)", r.shape, r.dtype, r.device)
}
