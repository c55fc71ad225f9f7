package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"

	"github.com/ed-tools/dataquiz/app/persistence"
)

// SyncOverrides refreshes the per-version assignment overrides from the
// current enrollment list: previously pushed overrides are dropped and
// recreated, so late-enrolled students get a version and dropped students
// lose access. Quizzes and files are left alone. An empty roster is a no-op.
func (p *Pipeline) SyncOverrides(ctx context.Context) error {
	versions, err := p.Store.LoadVersions()
	if err != nil {
		return fmt.Errorf("can't load published versions: %w", err)
	}
	published := make([]string, 0, len(versions))
	for _, v := range versions {
		if v.Published {
			published = append(published, v.Version)
		}
	}
	if len(published) == 0 {
		return fmt.Errorf("nothing published yet, run publish first")
	}

	students, err := p.Client.ListEnrollments(ctx, p.CourseID)
	if err != nil {
		return fmt.Errorf("can't list enrollments: %w", err)
	}
	if len(students) == 0 {
		log.Printf("[INFO] no students enrolled, override sync skipped")
		return nil
	}

	// drop previously pushed overrides, manual ones are kept
	existing, err := p.Client.ListOverrides(ctx, p.CourseID, p.AssignmentID)
	if err != nil {
		return fmt.Errorf("can't list overrides: %w", err)
	}
	for _, ov := range existing {
		if !strings.HasPrefix(ov.Title, overrideTitlePrefix) {
			continue
		}
		if err := p.Client.DeleteOverride(ctx, p.CourseID, p.AssignmentID, ov.ID); err != nil {
			return fmt.Errorf("can't drop stale override %d: %w", ov.ID, err)
		}
	}

	byVersion := Assign(students, published)
	assignments := []persistence.AssignmentInfo{}
	for _, version := range published {
		group := byVersion[version]
		if len(group) == 0 {
			continue
		}
		override, err := p.createOverride(ctx, version, group)
		if err != nil {
			return fmt.Errorf("version %s: %w", version, err)
		}
		for _, st := range group {
			assignments = append(assignments, persistence.AssignmentInfo{StudentID: st.ID,
				StudentName: st.Name, Version: version, OverrideID: override.ID})
		}
	}

	if err := p.Store.SaveAssignments(assignments); err != nil {
		log.Printf("[WARN] can't save assignments: %v", err)
	}
	log.Printf("[INFO] override sync done, %d students over %d versions", len(students), len(published))
	return nil
}

// SyncLoop re-runs the override sync on a cron schedule until the context is
// canceled, cancellation is a clean shutdown and returns nil. Sync failures
// are logged and the loop keeps going.
func (p *Pipeline) SyncLoop(ctx context.Context, spec string) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("can't parse resync schedule %q: %w", spec, err)
	}

	for {
		next := sched.Next(time.Now())
		log.Printf("[INFO] next override sync at %s", next.Format(time.RFC3339))
		select {
		case <-ctx.Done():
			log.Printf("[INFO] override sync loop terminated")
			return nil
		case <-time.After(time.Until(next)):
		}
		if err := p.SyncOverrides(ctx); err != nil {
			log.Printf("[WARN] override sync failed: %v", err)
			p.notify(ctx, "override sync failed", err.Error())
		}
	}
}
