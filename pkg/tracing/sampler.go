package tracing

import (
	"fmt"
	"hash/fnv"
	"math"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Decide returns the head-based sampling decision for a trace id at the given
// rate. The decision derives from a stable hash of the trace id, so repeated
// evaluation for the same trace yields the same answer across processes.
// Rates outside [0, 1] are clamped.
func Decide(traceID trace.TraceID, rate float64) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 1 {
		return true
	}
	h := fnv.New64a()
	h.Write(traceID[:])
	threshold := uint64(rate * float64(math.MaxUint64))
	return h.Sum64() < threshold
}

type ratioSampler struct {
	rate float64
}

// DeterministicRatioBased returns a root sampler whose decision is a pure
// function of the trace id and rate (see Decide). Wrap it in
// sdktrace.ParentBased, or use NewSampler, so descendant spans inherit the
// root decision instead of re-evaluating it.
func DeterministicRatioBased(rate float64) sdktrace.Sampler {
	return ratioSampler{rate: rate}
}

// NewSampler returns the sampler installed on inventory tracer providers:
// parent-based around the deterministic ratio root sampler, so the decision
// is fixed once at trace-root creation.
func NewSampler(rate float64) sdktrace.Sampler {
	return sdktrace.ParentBased(DeterministicRatioBased(rate))
}

func (s ratioSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	psc := trace.SpanContextFromContext(p.ParentContext)
	decision := sdktrace.Drop
	if Decide(p.TraceID, s.rate) {
		decision = sdktrace.RecordAndSample
	}
	return sdktrace.SamplingResult{
		Decision:   decision,
		Tracestate: psc.TraceState(),
	}
}

func (s ratioSampler) Description() string {
	return fmt.Sprintf("DeterministicRatioBased{%g}", s.rate)
}
