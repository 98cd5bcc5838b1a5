package profiles

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/closeplan/internal/core"
)

// LoadCatalogue reads a picklist catalogue from a YAML file of the form
//
//	timeline_tasks:
//	  workstream: [Finance, Tax, Other]
//	ssr_records:
//	  Stage__c: [Qualify, Propose]
func LoadCatalogue(path string) (core.Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read picklist catalogue: %w", err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes catalogue YAML. Empty value lists are rejected since
// they would make every row invalid.
func ParseCatalogue(data []byte) (core.Catalogue, error) {
	var cat core.Catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse picklist catalogue: %w", err)
	}
	for profile, fields := range cat {
		for field, values := range fields {
			if len(values) == 0 {
				return nil, fmt.Errorf("parse picklist catalogue: %s.%s has no values", profile, field)
			}
		}
	}
	return cat, nil
}

// ApplyCatalogueFile loads path and replaces the registered allowed values.
// An empty path keeps the built-in values.
func ApplyCatalogueFile(path string) error {
	if path == "" {
		return nil
	}
	cat, err := LoadCatalogue(path)
	if err != nil {
		return err
	}
	if err := core.ApplyCatalogue(cat); err != nil {
		return err
	}
	slog.Info("picklist catalogue applied", "path", path, "profiles", len(cat))
	return nil
}
