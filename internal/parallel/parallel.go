// Package parallel runs bounded data-parallel loops for the CPU backend.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Config bounds the fan-out of For.
type Config struct {
	Enabled      bool
	NumWorkers   int
	MinChunkSize int // indices a worker claims at a time
}

// DefaultConfig suits cheap per-index work such as softmax rows.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{Enabled: n > 1, NumWorkers: n, MinChunkSize: 64}
}

// CoarseConfig suits expensive per-index work such as one GEMM per
// (batch, head) slice.
func CoarseConfig() Config {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 1
	return cfg
}

// For calls f(i) once for every i in [0, n). Indices are handed out in
// chunks of cfg.MinChunkSize to at most cfg.NumWorkers goroutines; when
// there are fewer than two chunks of work the loop runs inline in order.
func For(n int, f func(i int), cfg Config) {
	chunk := max(cfg.MinChunkSize, 1)
	workers := min(cfg.NumWorkers, (n+chunk-1)/chunk)
	if !cfg.Enabled || workers < 2 {
		for i := range n {
			f(i)
		}
		return
	}

	var (
		next atomic.Int64
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				start := int(next.Add(int64(chunk))) - chunk
				if start >= n {
					return
				}
				for i := start; i < min(start+chunk, n); i++ {
					f(i)
				}
			}
		}()
	}
	wg.Wait()
}
