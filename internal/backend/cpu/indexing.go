package cpu

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Embedding gathers rows of weight [V, D] at int32 indices.
// Output shape is indices.Shape() + [D]. Panics on out-of-range indices;
// callers that take user input validate first.
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D, got %v", wShape))
	}
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices must be int32, got %s", indices.DType()))
	}
	requireFloat32("embedding", weight)

	numEmbeddings, dim := wShape[0], wShape[1]
	outShape := append(indices.Shape().Clone(), dim)
	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)

	w, dst := weight.AsFloat32(), result.AsFloat32()
	for i, idx := range indices.AsInt32() {
		if idx < 0 || int(idx) >= numEmbeddings {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, numEmbeddings))
		}
		copy(dst[i*dim:(i+1)*dim], w[int(idx)*dim:(int(idx)+1)*dim])
	}
	return result
}

// CrossEntropy computes the mean softmax cross-entropy of logits [N, C]
// against int32 targets [N]. Rows whose target equals ignoreIndex are
// excluded from the mean; if every row is ignored the loss is 0.
func (cpu *CPUBackend) CrossEntropy(logits, targets *tensor.RawTensor, ignoreIndex int) *tensor.RawTensor {
	n, c := checkCrossEntropy(logits, targets, ignoreIndex)

	logProbs := LogSoftmaxRows(logits.AsFloat32(), n, c)
	tgt := targets.AsInt32()

	var total float64
	count := 0
	for i := 0; i < n; i++ {
		if int(tgt[i]) == ignoreIndex {
			continue
		}
		total -= float64(logProbs[i*c+int(tgt[i])])
		count++
	}

	result := tensor.MustNewRaw(tensor.Shape{}, tensor.Float32, cpu.device)
	if count > 0 {
		result.AsFloat32()[0] = float32(total / float64(count))
	}
	return result
}

func checkCrossEntropy(logits, targets *tensor.RawTensor, ignoreIndex int) (n, c int) {
	ls, ts := logits.Shape(), targets.Shape()
	if len(ls) != 2 || len(ts) != 1 || ls[0] != ts[0] {
		panic(fmt.Sprintf("crossEntropy: expected logits [N, C] and targets [N], got %v and %v", ls, ts))
	}
	if targets.DType() != tensor.Int32 {
		panic(fmt.Sprintf("crossEntropy: targets must be int32, got %s", targets.DType()))
	}
	requireFloat32("crossEntropy", logits)
	for i, idx := range targets.AsInt32() {
		if int(idx) != ignoreIndex && (idx < 0 || int(idx) >= ls[1]) {
			panic(fmt.Sprintf("crossEntropy: target %d at row %d out of range [0, %d)", idx, i, ls[1]))
		}
	}
	return ls[0], ls[1]
}

// LogSoftmaxRows returns log-softmax of each row of an [n, c] matrix.
func LogSoftmaxRows(x []float32, n, c int) []float32 {
	out := make([]float32, n*c)
	for i := 0; i < n; i++ {
		row := x[i*c : (i+1)*c]
		maxVal := row[0]
		for _, v := range row[1:] {
			maxVal = max(maxVal, v)
		}
		var sum float64
		for _, v := range row {
			sum += exp64(v - maxVal)
		}
		logSum := float32(log64(sum)) + maxVal
		for j, v := range row {
			out[i*c+j] = v - logSum
		}
	}
	return out
}
