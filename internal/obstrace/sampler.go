package obstrace

import (
	"strconv"

	"go.opentelemetry.io/otel/sdk/trace"
)

// createSampler creates a trace sampler based on configuration, wrapped so
// POW checks are always fully sampled regardless of the configured ratio:
// POW's DFS can backtrack arbitrarily deep, and a dropped span is the one an
// operator most needs when a POW run runs long or rejects unexpectedly.
func createSampler(cfg *Config) trace.Sampler {
	return &modelSampler{base: baseSampler(cfg)}
}

func baseSampler(cfg *Config) trace.Sampler {
	switch cfg.Sampler {
	case "always_on":
		return trace.AlwaysSample()

	case "always_off":
		return trace.NeverSample()

	case "traceidratio":
		ratio := parseRatio(cfg.SamplerArg)
		return trace.TraceIDRatioBased(ratio)

	case "parentbased_always_on":
		return trace.ParentBased(trace.AlwaysSample())

	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())

	case "parentbased_traceidratio":
		ratio := parseRatio(cfg.SamplerArg)
		return trace.ParentBased(trace.TraceIDRatioBased(ratio))

	default:
		// Default: full sampling
		return trace.AlwaysSample()
	}
}

// modelSampler forces full sampling for the POW model's spans and defers
// everything else to base.
type modelSampler struct {
	base trace.Sampler
}

func (s *modelSampler) ShouldSample(p trace.SamplingParameters) trace.SamplingResult {
	for _, kv := range p.Attributes {
		if string(kv.Key) == modelAttrKey && kv.Value.AsString() == "POW" {
			return trace.AlwaysSample().ShouldSample(p)
		}
	}
	return s.base.ShouldSample(p)
}

func (s *modelSampler) Description() string {
	return "ModelSampler(" + s.base.Description() + ")"
}

// parseRatio parses a sampling ratio string to float64.
// Returns 1.0 (full sampling) if parsing fails or value is out of range.
func parseRatio(s string) float64 {
	if s == "" {
		return 1.0
	}

	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0
	}

	// Clamp to valid range [0, 1]
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1.0
	}

	return ratio
}
