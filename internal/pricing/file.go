package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

// FileName is the mirror of the stored rule set kept next to the database.
const FileName = "codex-tracker-pricing.json"

var saveMu sync.Mutex

// LoadFile reads a rule set written by SaveFile. found is false when the
// file does not exist.
func LoadFile(path string) (rules []core.PricingRuleInput, found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading pricing file: %w", err)
	}
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, true, fmt.Errorf("parsing pricing file %s: %w", path, err)
	}
	return rules, true, nil
}

// SaveFile writes rules as indented JSON, creating the parent directory.
func SaveFile(path string, rules []core.PricingRuleInput) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating pricing dir: %w", err)
	}
	if rules == nil {
		rules = []core.PricingRuleInput{}
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling pricing rules: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing pricing file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing pricing file: %w", err)
	}
	return nil
}
