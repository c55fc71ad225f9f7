// Package publish drives the LMS side of the pipeline: it uploads variant
// archives, creates one quiz per version with the generated questions, assigns
// students to versions and pushes per-version assignment overrides. Failures
// on one version are logged and the remaining versions still go out.
package publish

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sort"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/ed-tools/dataquiz/app/lms"
	"github.com/ed-tools/dataquiz/app/persistence"
	"github.com/ed-tools/dataquiz/app/quiz"
)

// LMSClient defines the subset of lms.Client used by the pipeline.
type LMSClient interface {
	ListEnrollments(ctx context.Context, courseID int64) ([]lms.Student, error)
	CreateQuiz(ctx context.Context, courseID int64, params lms.QuizParams) (lms.Quiz, error)
	CreateQuestion(ctx context.Context, courseID, quizID int64, params lms.QuestionParams) error
	PublishQuiz(ctx context.Context, courseID, quizID int64) error
	UploadFile(ctx context.Context, courseID int64, path, folder string) (lms.File, error)
	CreateOverride(ctx context.Context, courseID, assignmentID int64, params lms.OverrideParams) (lms.Override, error)
	ListOverrides(ctx context.Context, courseID, assignmentID int64) ([]lms.Override, error)
	DeleteOverride(ctx context.Context, courseID, assignmentID, overrideID int64) error
}

// Store records pipeline state between runs.
type Store interface {
	SaveVersion(v persistence.VersionInfo) error
	LoadVersions() ([]persistence.VersionInfo, error)
	SaveAssignments(assignments []persistence.AssignmentInfo) error
	RecordRun(r persistence.RunInfo) error
}

// Notifier delivers completion/error notifications, may be nil.
type Notifier interface {
	Send(ctx context.Context, subj, text string) error
}

// Pipeline publishes a generated QA set to the LMS.
type Pipeline struct {
	Client   LMSClient
	Store    Store
	Notifier Notifier

	CourseID     int64
	AssignmentID int64
	ArchiveDir   string
	UploadFolder string

	TitlePrefix    string
	Description    string
	TimeLimitMin   int
	ShuffleAnswers bool

	DueAt    time.Time
	UnlockAt time.Time
	LockAt   time.Time
}

// overrideTitle prefixes override names so the resync can tell ours apart
// from manually created ones.
const overrideTitlePrefix = "dataquiz version "

// Do publishes all versions of the QA set. Returns an error if any version
// failed, the rest are still published and recorded.
func (p *Pipeline) Do(ctx context.Context, qa quiz.Set, manifest map[string]int) error {
	started := time.Now()
	runID := uuid.New().String()
	log.Printf("[INFO] publish run %s started, %d versions", runID, len(qa))

	students, err := p.Client.ListEnrollments(ctx, p.CourseID)
	if err != nil {
		p.recordRun(runID, started, persistence.RunStatusFailed, len(qa), len(qa))
		p.notify(ctx, "publish failed", fmt.Sprintf("run %s: can't list enrollments: %v", runID, err))
		return fmt.Errorf("can't list enrollments: %w", err)
	}

	versions := qa.Versions()
	byVersion := Assign(students, versions)

	failed := 0
	assignments := []persistence.AssignmentInfo{}
	for _, version := range versions {
		entry := qa[version]
		verAssignments, err := p.publishVersion(ctx, version, entry, byVersion[version], manifest[version])
		if err != nil {
			log.Printf("[WARN] version %s failed, skipping: %v", version, err)
			failed++
			continue
		}
		assignments = append(assignments, verAssignments...)
	}

	if err := p.Store.SaveAssignments(assignments); err != nil {
		log.Printf("[WARN] can't save assignments: %v", err)
	}

	status := persistence.RunStatusOK
	if failed > 0 {
		status = persistence.RunStatusPartial
	}
	if failed == len(versions) {
		status = persistence.RunStatusFailed
	}
	p.recordRun(runID, started, status, len(versions), failed)

	if failed > 0 {
		p.notify(ctx, "publish finished with failures",
			fmt.Sprintf("run %s: %d of %d versions failed", runID, failed, len(versions)))
		return fmt.Errorf("%d of %d versions failed to publish", failed, len(versions))
	}
	p.notify(ctx, "publish completed",
		fmt.Sprintf("run %s: %d versions published for %d students", runID, len(versions), len(students)))
	log.Printf("[INFO] publish run %s completed, %d versions, %d students", runID, len(versions), len(students))
	return nil
}

// publishVersion runs the per-version flow: upload archive, create quiz, add
// questions, publish, create the override for the version's students.
func (p *Pipeline) publishVersion(ctx context.Context, version string, entry quiz.Entry,
	students []lms.Student, rows int) ([]persistence.AssignmentInfo, error) {

	file, err := p.Client.UploadFile(ctx, p.CourseID, filepath.Join(p.ArchiveDir, entry.File.Name), p.UploadFolder)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	description := p.Description
	if file.URL != "" {
		description += fmt.Sprintf(`<p>Your dataset: <a href="%s">%s</a></p>`, file.URL, entry.File.Name)
	}

	created, err := p.Client.CreateQuiz(ctx, p.CourseID, lms.QuizParams{
		Title:          fmt.Sprintf("%s [%s]", p.TitlePrefix, version),
		Description:    description,
		TimeLimit:      p.TimeLimitMin,
		ShuffleAnswers: p.ShuffleAnswers,
	})
	if err != nil {
		return nil, fmt.Errorf("quiz creation failed: %w", err)
	}

	for _, q := range entry.Questions {
		params := lms.QuestionParams{Name: q.Name, Text: q.Text, Answer: q.Answer, Tolerance: q.Tolerance, Points: q.Points}
		if err := p.Client.CreateQuestion(ctx, p.CourseID, created.ID, params); err != nil {
			return nil, fmt.Errorf("question %q failed: %w", q.Name, err)
		}
	}

	if err := p.Client.PublishQuiz(ctx, p.CourseID, created.ID); err != nil {
		return nil, fmt.Errorf("quiz publish failed: %w", err)
	}

	var overrideID int64
	if len(students) > 0 {
		override, err := p.createOverride(ctx, version, students)
		if err != nil {
			return nil, err
		}
		overrideID = override.ID
	}

	if err := p.Store.SaveVersion(persistence.VersionInfo{Version: version, Rows: rows,
		QuizID: created.ID, FileID: file.ID, FileURL: file.URL, Published: true}); err != nil {
		log.Printf("[WARN] can't save version %s: %v", version, err)
	}

	res := make([]persistence.AssignmentInfo, 0, len(students))
	for _, st := range students {
		res = append(res, persistence.AssignmentInfo{StudentID: st.ID, StudentName: st.Name,
			Version: version, OverrideID: overrideID})
	}
	return res, nil
}

func (p *Pipeline) createOverride(ctx context.Context, version string, students []lms.Student) (lms.Override, error) {
	ids := make([]int64, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	params := lms.OverrideParams{Title: overrideTitlePrefix + version, StudentIDs: ids}
	if !p.DueAt.IsZero() {
		due := p.DueAt
		params.DueAt = &due
	}
	if !p.UnlockAt.IsZero() {
		unlock := p.UnlockAt
		params.UnlockAt = &unlock
	}
	if !p.LockAt.IsZero() {
		lock := p.LockAt
		params.LockAt = &lock
	}

	override, err := p.Client.CreateOverride(ctx, p.CourseID, p.AssignmentID, params)
	if err != nil {
		return lms.Override{}, fmt.Errorf("override failed: %w", err)
	}
	return override, nil
}

func (p *Pipeline) recordRun(id string, started time.Time, status string, versions, failed int) {
	err := p.Store.RecordRun(persistence.RunInfo{ID: id, StartedAt: started, FinishedAt: time.Now(),
		Status: status, Versions: versions, Failed: failed})
	if err != nil {
		log.Printf("[WARN] can't record run %s: %v", id, err)
	}
}

func (p *Pipeline) notify(ctx context.Context, subj, text string) {
	if p.Notifier == nil {
		return
	}
	if err := p.Notifier.Send(ctx, subj, text); err != nil {
		log.Printf("[WARN] notification failed: %v", err)
	}
}

// Assign maps students to versions with a stable hash of the student ID, the
// same roster and version list always produce the same mapping. Returns
// version to students.
func Assign(students []lms.Student, versions []string) map[string][]lms.Student {
	res := map[string][]lms.Student{}
	if len(versions) == 0 {
		return res
	}
	sorted := make([]string, len(versions))
	copy(sorted, versions)
	sort.Strings(sorted)

	for _, st := range students {
		h := fnv.New32a()
		_, _ = fmt.Fprintf(h, "%d", st.ID)
		version := sorted[h.Sum32()%uint32(len(sorted))]
		res[version] = append(res[version], st)
	}
	return res
}
