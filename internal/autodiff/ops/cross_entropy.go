package ops

import (
	"math"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// CrossEntropyOp represents mean softmax cross-entropy over non-ignored rows.
//
// Forward:
//
//	loss = -(1/N') Σ_{i: y_i != ignore} log_softmax(logits_i)[y_i]
//
// Backward (fused softmax + NLL):
//
//	∂L/∂logits_i = (softmax(logits_i) - onehot(y_i)) / N'   for counted rows
//	∂L/∂logits_i = 0                                         for ignored rows
type CrossEntropyOp struct {
	logits      *tensor.RawTensor // [N, C]
	targets     *tensor.RawTensor // int32 [N]
	output      *tensor.RawTensor // scalar
	ignoreIndex int
}

// NewCrossEntropyOp creates a new CrossEntropyOp.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor, ignoreIndex int) *CrossEntropyOp {
	return &CrossEntropyOp{
		logits:      logits,
		targets:     targets,
		output:      output,
		ignoreIndex: ignoreIndex,
	}
}

// Inputs returns the logits; targets are not differentiable.
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the scalar loss.
func (op *CrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the gradient with respect to the logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.logits.Shape()
	n, c := shape[0], shape[1]

	grad := zerosLike(op.logits, backend)
	logits, tgt, dst := op.logits.AsFloat32(), op.targets.AsInt32(), grad.AsFloat32()

	count := 0
	for _, y := range tgt {
		if int(y) != op.ignoreIndex {
			count++
		}
	}
	if count == 0 {
		return []*tensor.RawTensor{grad}
	}
	scale := outputGrad.AsFloat32()[0] / float32(count)

	for i := 0; i < n; i++ {
		if int(tgt[i]) == op.ignoreIndex {
			continue
		}
		row := logits[i*c : (i+1)*c]
		maxVal := row[0]
		for _, v := range row[1:] {
			maxVal = max(maxVal, v)
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v - maxVal))
		}
		for j, v := range row {
			p := float32(math.Exp(float64(v-maxVal)) / sum)
			if j == int(tgt[i]) {
				p--
			}
			dst[i*c+j] = p * scale
		}
	}

	return []*tensor.RawTensor{grad}
}
