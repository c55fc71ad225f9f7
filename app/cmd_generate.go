package main

import (
	"fmt"
	"path/filepath"

	"github.com/ed-tools/dataquiz/app/config"
	"github.com/ed-tools/dataquiz/app/dataset"
	"github.com/ed-tools/dataquiz/app/quiz"
)

// GenerateCommand derives question/answer pairs for every variant listed in
// the manifest and writes the QA file.
type GenerateCommand struct{}

// Execute runs the generate stage.
func (c *GenerateCommand) Execute(_ []string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}

	entries, err := dataset.ReadManifest(filepath.Join(cfg.Out, "manifest.csv"))
	if err != nil {
		return fmt.Errorf("run sample first: %w", err)
	}

	variants := make([]dataset.Variant, 0, len(entries))
	for _, e := range entries {
		m, err := dataset.Load(filepath.Join(cfg.Out, e.Version+".csv"))
		if err != nil {
			return fmt.Errorf("can't load variant %s: %w", e.Version, err)
		}
		variants = append(variants, dataset.Variant{Version: e.Version, Header: m.Header, Rows: m.Rows})
	}

	set, err := quiz.Generate(variants, cfg.Templates, cfg.Out)
	if err != nil {
		return err
	}
	return quiz.Save(cfg.QAFile, set)
}
