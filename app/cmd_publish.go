package main

import (
	"fmt"
	"path/filepath"

	log "github.com/go-pkgz/lgr"

	"github.com/ed-tools/dataquiz/app/config"
	"github.com/ed-tools/dataquiz/app/dataset"
	"github.com/ed-tools/dataquiz/app/lms"
	"github.com/ed-tools/dataquiz/app/notify"
	"github.com/ed-tools/dataquiz/app/persistence"
	"github.com/ed-tools/dataquiz/app/publish"
	"github.com/ed-tools/dataquiz/app/quiz"
)

// PublishCommand pushes the generated QA set to the LMS and records results
// in the run store.
type PublishCommand struct {
	Folder   string `long:"folder" env:"DATAQUIZ_FOLDER" default:"quiz-data" description:"LMS folder for uploaded archives"`
	SyncOnly bool   `long:"sync-only" description:"refresh assignment overrides only, no quiz creation"`
	Resync   string `long:"resync" env:"DATAQUIZ_RESYNC" description:"cron spec to keep re-running the override sync"`
}

// Execute runs the publish stage.
func (c *PublishCommand) Execute(_ []string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if err := cfg.RequireLMS(); err != nil {
		return err
	}

	store, err := persistence.NewSQLiteStore(cfg.StoreDB)
	if err != nil {
		return fmt.Errorf("can't open run store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] can't close run store: %v", err)
		}
	}()
	if err := store.Initialize(); err != nil {
		return fmt.Errorf("can't initialize run store: %w", err)
	}

	pipeline := &publish.Pipeline{
		Client:         lms.New(cfg.LMS.BaseURL, cfg.LMS.Token, cfg.LMS.Timeout),
		Store:          store,
		Notifier:       notifier(cfg),
		CourseID:       cfg.LMS.CourseID,
		AssignmentID:   cfg.LMS.AssignmentID,
		ArchiveDir:     cfg.Out,
		UploadFolder:   c.Folder,
		TitlePrefix:    cfg.Quiz.TitlePrefix,
		Description:    cfg.Quiz.Description,
		TimeLimitMin:   cfg.Quiz.TimeLimitMin,
		ShuffleAnswers: cfg.Quiz.ShuffleAnswers,
		DueAt:          cfg.Override.DueAt,
		UnlockAt:       cfg.Override.UnlockAt,
		LockAt:         cfg.Override.LockAt,
	}

	if c.SyncOnly {
		return pipeline.SyncOverrides(rootCtx)
	}

	qa, err := quiz.Load(cfg.QAFile)
	if err != nil {
		return fmt.Errorf("run generate first: %w", err)
	}
	if err := quiz.VerifyAgainstEmbeddedSchema(qa); err != nil {
		return err
	}

	rows := map[string]int{}
	if entries, err := dataset.ReadManifest(filepath.Join(cfg.Out, "manifest.csv")); err == nil {
		for _, e := range entries {
			rows[e.Version] = e.Rows
		}
	} else {
		log.Printf("[WARN] manifest not available, row counts not recorded: %v", err)
	}

	if err := pipeline.Do(rootCtx, qa, rows); err != nil {
		return err
	}

	if c.Resync != "" {
		return pipeline.SyncLoop(rootCtx, c.Resync)
	}
	return nil
}

// notifier wires the notification service, nil when not configured.
func notifier(cfg *config.Config) publish.Notifier {
	svc := notify.New(cfg.Notify, 0)
	if svc == nil {
		return nil
	}
	return svc
}
