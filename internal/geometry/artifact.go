package geometry

import (
	"encoding/json"
	"fmt"
	"os"
)

// WritePages persists the raw extraction artifact for one file.
func WritePages(path string, pages []RawPage) error {
	data, err := json.MarshalIndent(pages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal raw pages: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write raw extraction artifact: %w", err)
	}
	return nil
}

// ReadPages loads a raw extraction artifact.
func ReadPages(path string) ([]RawPage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw extraction artifact: %w", err)
	}
	var pages []RawPage
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("failed to parse raw extraction artifact: %w", err)
	}
	return pages, nil
}
