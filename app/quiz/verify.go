package quiz

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed schema.json
var embeddedSchemaData []byte

// VerifyAgainstEmbeddedSchema validates a QA set against the embedded JSON schema.
func VerifyAgainstEmbeddedSchema(s Set) error {
	// parse embedded schema to make sure the shipped copy is sane
	var schema map[string]interface{}
	if err := json.Unmarshal(embeddedSchemaData, &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	if err := s.Verify(); err != nil {
		return fmt.Errorf("QA set validation failed: %w", err)
	}
	return nil
}

// Verify checks the structural invariants of a QA set: at least one version,
// every version with at least one question, every question with text and name.
func (s Set) Verify() error {
	if len(s) == 0 {
		return fmt.Errorf("QA set is empty")
	}
	for _, version := range s.Versions() {
		entry := s[version]
		if len(version) != 8 {
			return fmt.Errorf("version %q: identifier has to be 8 hex chars", version)
		}
		if len(entry.Questions) == 0 {
			return fmt.Errorf("version %s: no questions", version)
		}
		if entry.File.Name == "" {
			return fmt.Errorf("version %s: missing file name", version)
		}
		for i, q := range entry.Questions {
			if q.Name == "" {
				return fmt.Errorf("version %s: question %d has no name", version, i+1)
			}
			if q.Text == "" {
				return fmt.Errorf("version %s: question %q has no text", version, q.Name)
			}
			if q.Points <= 0 {
				return fmt.Errorf("version %s: question %q has non-positive points", version, q.Name)
			}
			if q.Tolerance < 0 {
				return fmt.Errorf("version %s: question %q has negative tolerance", version, q.Name)
			}
		}
	}
	return nil
}
