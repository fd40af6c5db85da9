package tensor

// Backend defines the interface that compute backends implement.
// Backends handle the actual computation for tensor operations; they
// receive and return RawTensors and never mutate their inputs.
//
// Binary element-wise operations follow NumPy broadcasting rules.
// Shape violations are programmer errors and panic.
//
// Implementations:
//   - CPU: pure Go with gonum BLAS for matrix products
//   - Autodiff: decorator that records operations for backpropagation
type Backend interface {
	// Element-wise binary operations (broadcasting).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
	// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
	// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Expand(t *RawTensor, newShape Shape) *RawTensor
	Narrow(t *RawTensor, dim, start, length int) *RawTensor

	// Scalar operations.
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// Element-wise math.
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor

	// Softmax along dim.
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	// Comparison and boolean operations return Bool tensors.
	Equal(a, b *RawTensor) *RawTensor
	NotEqual(a, b *RawTensor) *RawTensor
	And(a, b *RawTensor) *RawTensor
	Not(x *RawTensor) *RawTensor

	// Where selects x where cond is true and y elsewhere (broadcasting).
	Where(cond, x, y *RawTensor) *RawTensor

	// Embedding gathers rows of weight [V, D] by int32 indices of any shape,
	// producing indices.Shape + [D].
	Embedding(weight, indices *RawTensor) *RawTensor

	// Cast converts x to dtype.
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
