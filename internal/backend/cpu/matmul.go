package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/seq2seq/internal/parallel"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N), computed with SGEMM.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("matmul: only float32 supported, got %s and %s", a.DType(), b.DType()))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := tensor.MustNewRaw(tensor.Shape{m, n}, tensor.Float32, cpu.device)
	sgemm(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	return result
}

// BatchMatMul performs batched matrix multiplication over the leading
// dimensions of 3D or 4D tensors. Leading dimensions must match exactly.
//
// Each (batch[, head]) slice is an independent SGEMM and slices run in
// parallel.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != len(bShape) || (len(aShape) != 3 && len(aShape) != 4) {
		panic(fmt.Sprintf("batchmatmul: expected matching 3D or 4D tensors, got %v and %v", aShape, bShape))
	}
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("batchmatmul: only float32 supported, got %s and %s", a.DType(), b.DType()))
	}

	rank := len(aShape)
	for d := 0; d < rank-2; d++ {
		if aShape[d] != bShape[d] {
			panic(fmt.Sprintf("batchmatmul: batch dimension mismatch %v vs %v", aShape, bShape))
		}
	}

	m, k := aShape[rank-2], aShape[rank-1]
	kAlt, n := bShape[rank-2], bShape[rank-1]
	if k != kAlt {
		panic(fmt.Sprintf("batchmatmul: inner dimension mismatch %v @ %v", aShape, bShape))
	}

	outShape := aShape.Clone()
	outShape[rank-1] = n
	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)

	batch := 1
	for d := 0; d < rank-2; d++ {
		batch *= aShape[d]
	}

	aData, bData, cData := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
	parallel.For(batch, func(i int) {
		sgemm(
			cData[i*m*n:(i+1)*m*n],
			aData[i*m*k:(i+1)*m*k],
			bData[i*k*n:(i+1)*k*n],
			m, k, n,
		)
	}, cpu.par)

	return result
}

// sgemm computes C = A @ B for row-major A [m,k], B [k,n], C [m,n].
func sgemm(c, a, b []float32, m, k, n int) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c},
	)
}
