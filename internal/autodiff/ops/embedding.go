package ops

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// EmbeddingOp represents an embedding lookup: output[i] = weight[indices[i]].
//
// Backward is a scatter-add: gradients of positions sharing an index are summed.
//
//	indices = [0, 1, 0]
//	grad_output = [[1,2], [3,4], [5,6]]
//	grad_weight[0] = [1,2] + [5,6] = [6,8]
//	grad_weight[1] = [3,4]
type EmbeddingOp struct {
	weight  *tensor.RawTensor // [numEmbeddings, dim]
	indices *tensor.RawTensor // int32
	output  *tensor.RawTensor
}

// NewEmbeddingOp creates a new embedding operation.
func NewEmbeddingOp(weight, indices, output *tensor.RawTensor) *EmbeddingOp {
	return &EmbeddingOp{
		weight:  weight,
		indices: indices,
		output:  output,
	}
}

// Inputs returns the weight only; indices are not differentiable.
func (op *EmbeddingOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.weight}
}

// Output returns the output tensor.
func (op *EmbeddingOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward scatters output gradients into the rows of the weight gradient.
func (op *EmbeddingOp) Backward(gradOutput *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dim := op.weight.Shape()[1]
	gradWeight := zerosLike(op.weight, backend)

	gw := gradWeight.AsFloat32()
	g := gradOutput.AsFloat32()
	for i, idx := range op.indices.AsInt32() {
		row := gw[int(idx)*dim : (int(idx)+1)*dim]
		src := g[i*dim : (i+1)*dim]
		for j := range row {
			row[j] += src[j]
		}
	}

	return []*tensor.RawTensor{gradWeight}
}
