package generate

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// SamplingConfig selects the next-token strategy.
type SamplingConfig struct {
	// Temperature scales logits before sampling. 0 selects the argmax.
	Temperature float32

	// TopK keeps the K most likely tokens. 0 disables.
	TopK int

	// TopP keeps the smallest set of tokens whose probability mass exceeds P.
	// 0 or 1 disables.
	TopP float32

	// RepeatPenalty divides positive (multiplies negative) logits of tokens
	// already generated. 0 or 1 disables.
	RepeatPenalty float32

	// Seed makes sampling reproducible.
	Seed uint64
}

// GreedySampling returns the argmax configuration.
func GreedySampling() SamplingConfig {
	return SamplingConfig{}
}

// Sampler picks token ids from logit vectors.
type Sampler struct {
	config SamplingConfig
	rng    *rand.Rand
}

// NewSampler creates a sampler.
func NewSampler(config SamplingConfig) *Sampler {
	return &Sampler{config: config, rng: tensor.NewRNG(config.Seed)}
}

// Config returns the sampling configuration.
func (s *Sampler) Config() SamplingConfig {
	return s.config
}

// Sample returns the next token id. logits is not modified; -Inf entries
// are never chosen unless every entry is -Inf.
func (s *Sampler) Sample(logits []float32, previous []int32) int32 {
	logits = slices.Clone(logits)

	if p := s.config.RepeatPenalty; p > 0 && p != 1 {
		penalize(logits, previous, p)
	}
	if s.config.Temperature <= 0 {
		return argmax(logits)
	}
	if s.config.Temperature != 1 {
		for i := range logits {
			logits[i] /= s.config.Temperature
		}
	}
	if k := s.config.TopK; k > 0 && k < len(logits) {
		topK(logits, k)
	}
	if p := s.config.TopP; p > 0 && p < 1 {
		topP(logits, p)
	}
	return s.draw(softmax(logits))
}

func argmax(logits []float32) int32 {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return int32(best) //nolint:gosec // G115: vocabulary size < 2^31
}

func penalize(logits []float32, previous []int32, penalty float32) {
	seen := make(map[int32]bool, len(previous))
	for _, id := range previous {
		if seen[id] || int(id) >= len(logits) || id < 0 {
			continue
		}
		seen[id] = true
		if logits[id] > 0 {
			logits[id] /= penalty
		} else {
			logits[id] *= penalty
		}
	}
}

func topK(logits []float32, k int) {
	sorted := slices.Clone(logits)
	slices.SortFunc(sorted, func(a, b float32) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})
	threshold := sorted[k-1]
	for i, v := range logits {
		if v < threshold {
			logits[i] = float32(math.Inf(-1))
		}
	}
}

func topP(logits []float32, p float32) {
	probs := softmax(logits)
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case probs[a] > probs[b]:
			return -1
		case probs[a] < probs[b]:
			return 1
		}
		return 0
	})

	var mass float32
	keep := len(order)
	for i, idx := range order {
		mass += probs[idx]
		if mass >= p {
			keep = i + 1
			break
		}
	}
	for _, idx := range order[keep:] {
		logits[idx] = float32(math.Inf(-1))
	}
}

func (s *Sampler) draw(probs []float32) int32 {
	r := s.rng.Float32()
	var cum float32
	last := 0
	for i, p := range probs {
		if p == 0 {
			continue
		}
		cum += p
		last = i
		if r < cum {
			return int32(i) //nolint:gosec // G115: vocabulary size < 2^31
		}
	}
	return int32(last) //nolint:gosec // G115: vocabulary size < 2^31
}

func softmax(logits []float32) []float32 {
	maxVal := float32(math.Inf(-1))
	for _, v := range logits {
		maxVal = max(maxVal, v)
	}
	probs := make([]float32, len(logits))
	if math.IsInf(float64(maxVal), -1) {
		return probs
	}
	var sum float32
	for i, v := range logits {
		probs[i] = float32(math.Exp(float64(v - maxVal)))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
