package main

import (
	"fmt"
	"path/filepath"

	log "github.com/go-pkgz/lgr"

	"github.com/ed-tools/dataquiz/app/archive"
	"github.com/ed-tools/dataquiz/app/config"
	"github.com/ed-tools/dataquiz/app/dataset"
)

// SampleCommand reads the master dataset and writes per-student variants,
// the manifest and zip archives.
type SampleCommand struct {
	Seed     int64 `long:"seed" env:"DATAQUIZ_SEED" description:"override sampling seed from config"`
	SkipZips bool  `long:"skip-zips" description:"write variants and manifest only, no archives"`
}

// Execute runs the sample stage.
func (c *SampleCommand) Execute(_ []string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}

	master, err := dataset.Load(cfg.Master)
	if err != nil {
		return err
	}

	seed := cfg.Sample.Seed
	if c.Seed != 0 {
		seed = c.Seed
	}

	sampler := dataset.Sampler{Rows: cfg.Sample.Rows, Seed: seed}
	variants, err := sampler.Variants(master, cfg.Sample.Variants)
	if err != nil {
		return err
	}

	if err := dataset.WriteVariants(cfg.Out, variants); err != nil {
		return err
	}
	if err := dataset.WriteManifest(filepath.Join(cfg.Out, "manifest.csv"), variants); err != nil {
		return err
	}

	if c.SkipZips {
		log.Printf("[INFO] archives skipped")
		return nil
	}

	versions := make([]string, 0, len(variants))
	for _, v := range variants {
		versions = append(versions, v.Version)
	}
	archiver := archive.Archiver{Workers: cfg.Sample.Workers, MinFreeMB: cfg.Sample.MinFreeMB}
	if _, err := archiver.Run(rootCtx, cfg.Out, versions); err != nil {
		return fmt.Errorf("archiving failed: %w", err)
	}
	return nil
}
