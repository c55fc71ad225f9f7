package quiz

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	log "github.com/go-pkgz/lgr"

	"github.com/ed-tools/dataquiz/app/dataset"
)

// Question is a single generated question with its numeric answer.
type Question struct {
	Name      string  `json:"name"`
	Text      string  `json:"text"`
	Answer    float64 `json:"answer"`
	Tolerance float64 `json:"tolerance,omitempty"` // absolute grading tolerance
	Points    float64 `json:"points"`
}

// UnmarshalJSON rejects questions with the answer field missing. Zero is a
// legitimate answer, so presence has to be checked at decode time.
func (q *Question) UnmarshalJSON(data []byte) error {
	type question Question // no methods, avoids recursion
	aux := struct {
		*question
		Answer *float64 `json:"answer"`
	}{question: (*question)(q)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Answer == nil {
		return fmt.Errorf("question %q has no answer", q.Name)
	}
	q.Answer = *aux.Answer
	return nil
}

// FileInfo holds download metadata for the variant's archive. URL is filled by
// the publish stage after the upload.
type FileInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}

// Entry is everything generated for one version.
type Entry struct {
	Questions []Question `json:"questions"`
	File      FileInfo   `json:"file"`
}

// Set is the QA file content, version hash to generated entry.
type Set map[string]Entry

// Generate renders all templates for each variant and collects the QA set.
// A variant failing any template fails the whole generation, a QA file with
// holes would produce ungradable quizzes.
func Generate(variants []dataset.Variant, templates []Template, archiveDir string) (Set, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("no question templates configured")
	}

	set := Set{}
	for i := range variants {
		v := &variants[i]
		questions := make([]Question, 0, len(templates))
		for _, t := range templates {
			q, err := t.Render(v)
			if err != nil {
				return nil, err
			}
			questions = append(questions, q)
		}
		set[v.Version] = Entry{
			Questions: questions,
			File:      FileInfo{Name: v.Version + ".zip", Path: filepath.Join(archiveDir, v.Version+".zip")},
		}
		log.Printf("[DEBUG] generated %d questions for version %s", len(questions), v.Version)
	}
	log.Printf("[INFO] generated QA set for %d versions, %d questions each", len(set), len(templates))
	return set, nil
}

// Versions returns all version hashes in the set, sorted for stable iteration.
func (s Set) Versions() []string {
	res := make([]string, 0, len(s))
	for v := range s {
		res = append(res, v)
	}
	sort.Strings(res)
	return res
}

// Save writes the QA set as an indented JSON file.
func Save(file string, s Set) error {
	if err := s.Verify(); err != nil {
		return fmt.Errorf("refusing to save invalid QA set: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("can't marshal QA set: %w", err)
	}
	if err := os.WriteFile(file, data, 0o600); err != nil {
		return fmt.Errorf("can't write QA file %s: %w", file, err)
	}
	log.Printf("[INFO] saved QA file %s, %d versions", file, len(s))
	return nil
}

// Load reads and verifies a QA file.
func Load(file string) (Set, error) {
	data, err := os.ReadFile(file) // nolint gosec // file path comes from the config
	if err != nil {
		return nil, fmt.Errorf("can't read QA file %s: %w", file, err)
	}
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("can't parse QA file %s: %w", file, err)
	}
	if err := s.Verify(); err != nil {
		return nil, fmt.Errorf("invalid QA file %s: %w", file, err)
	}
	return s, nil
}
