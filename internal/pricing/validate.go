package pricing

import (
	"math"
	"strings"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

// Validate checks a replacement rule set and returns it with patterns
// trimmed and effective bounds in canonical timestamp form.
func Validate(inputs []core.PricingRuleInput) ([]core.PricingRuleInput, error) {
	out := make([]core.PricingRuleInput, 0, len(inputs))
	for i, in := range inputs {
		in.ModelPattern = strings.TrimSpace(in.ModelPattern)
		if in.ModelPattern == "" {
			return nil, core.InvalidInput("rule %d: model pattern is required", i)
		}
		for _, price := range []float64{in.InputPer1M, in.CachedInputPer1M, in.OutputPer1M} {
			if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
				return nil, core.InvalidInput("rule %d: prices must be finite and non-negative", i)
			}
		}
		from, err := core.NormalizeRFC3339(strings.TrimSpace(in.EffectiveFrom))
		if err != nil {
			return nil, core.InvalidInput("rule %d: effective_from: %v", i, err)
		}
		in.EffectiveFrom = from
		if in.EffectiveTo != nil {
			to, err := core.NormalizeRFC3339(strings.TrimSpace(*in.EffectiveTo))
			if err != nil {
				return nil, core.InvalidInput("rule %d: effective_to: %v", i, err)
			}
			if to <= from {
				return nil, core.InvalidInput("rule %d: effective_to must be after effective_from", i)
			}
			in.EffectiveTo = core.StringPtr(to)
		}
		out = append(out, in)
	}
	return out, nil
}
