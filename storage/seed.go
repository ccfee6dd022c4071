package storage

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/iabalyuk/advisorbot/model"
)

// LoadSeed reads advisors from a JSON file holding an array of rows in the
// same shape the REST directory returns.
func LoadSeed(path string) ([]model.Advisor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var advisors []model.Advisor
	if err := json.Unmarshal(data, &advisors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seed file %s: %w", path, err)
	}
	for _, a := range advisors {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("seed file %s: %w", path, err)
		}
	}
	return advisors, nil
}

// SaveSeed writes advisors to path in the seed format
func SaveSeed(path string, advisors []model.Advisor) error {
	data, err := json.MarshalIndent(advisors, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal advisors: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write seed file %s: %w", path, err)
	}
	return nil
}
