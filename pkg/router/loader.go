package router

import (
	"encoding/json"
	"os"
)

// LoadRules reads a routing table from a JSON file, so persona logic
// can be tuned without a rebuild.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, err
	}

	return rules, nil
}
