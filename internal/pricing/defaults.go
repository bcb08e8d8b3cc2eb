package pricing

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

//go:embed initial-pricing.json
var initialPricing []byte

// Defaults returns the bundled rule set used when no mirror file exists.
func Defaults() ([]core.PricingRuleInput, error) {
	var rules []core.PricingRuleInput
	if err := json.Unmarshal(initialPricing, &rules); err != nil {
		return nil, fmt.Errorf("pricing: parse bundled defaults: %w", err)
	}
	return rules, nil
}
