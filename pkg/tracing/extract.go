package tracing

import "context"

// ExtractionRule derives span attributes from an operation input or output.
// Rules are pure functions registered at decoration time; they must tolerate
// partially populated or malformed input by returning ok=false rather than
// failing. A rule that panics is skipped and reported as a usage warning,
// without affecting other rules.
type ExtractionRule struct {
	Name    string
	Extract func(input any) ([]Field, bool)
}

// Rule is a convenience constructor for ExtractionRule.
func Rule(name string, extract func(input any) ([]Field, bool)) ExtractionRule {
	return ExtractionRule{Name: name, Extract: extract}
}

// ApplyRules runs every rule against input and sets the resulting attributes
// on span. A failing or panicking rule only omits its own attributes. Rules
// never run against a non-recording span, so unsampled traffic pays no
// extraction cost.
func ApplyRules(ctx context.Context, span Span, logger Logger, input any, rules []ExtractionRule) {
	if span == nil || !span.IsRecording() {
		return
	}
	for _, rule := range rules {
		fields, ok := runRule(ctx, logger, input, rule)
		if !ok {
			continue
		}
		span.SetAttributes(fields...)
	}
}

func runRule(ctx context.Context, logger Logger, input any, rule ExtractionRule) (fields []Field, ok bool) {
	if rule.Extract == nil {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if logger != nil {
				logger.Warn(ctx, "attribute extraction rule panicked",
					String("rule", rule.Name),
					Any("panic", r))
			}
		}
	}()
	fields, ok = rule.Extract(input)
	return fields, ok
}
