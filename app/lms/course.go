package lms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"
)

// Student is a course enrollment with an active user behind it.
type Student struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"login_id"`
}

type enrollment struct {
	UserID int64   `json:"user_id"`
	Type   string  `json:"type"`
	User   Student `json:"user"`
}

// ListEnrollments returns all students enrolled in the course, following
// Link-header pagination until the last page.
func (c *Client) ListEnrollments(ctx context.Context, courseID int64) ([]Student, error) {
	var res []Student
	url := fmt.Sprintf("%s/courses/%d/enrollments?type[]=StudentEnrollment&per_page=%d", c.BaseURL, courseID, perPage)
	pages := 0
	for url != "" {
		var page []enrollment
		header, err := c.do(ctx, http.MethodGet, url, nil, &page)
		if err != nil {
			return nil, fmt.Errorf("can't list enrollments for course %d: %w", courseID, err)
		}
		for _, e := range page {
			st := e.User
			if st.ID == 0 {
				st.ID = e.UserID
			}
			res = append(res, st)
		}
		pages++
		url = NextLink(header.Get("Link"))
	}
	log.Printf("[INFO] listed %d students in course %d (%d pages)", len(res), courseID, pages)
	return res, nil
}

// OverrideParams is an assignment override: a set of students with their own
// due/availability window.
type OverrideParams struct {
	Title      string     `json:"title"`
	StudentIDs []int64    `json:"student_ids"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	UnlockAt   *time.Time `json:"unlock_at,omitempty"`
	LockAt     *time.Time `json:"lock_at,omitempty"`
}

// Override is a created assignment override.
type Override struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	StudentIDs []int64 `json:"student_ids"`
}

// CreateOverride assigns an availability window to the listed students for the assignment.
func (c *Client) CreateOverride(ctx context.Context, courseID, assignmentID int64, params OverrideParams) (Override, error) {
	url := fmt.Sprintf("%s/courses/%d/assignments/%d/overrides", c.BaseURL, courseID, assignmentID)
	body := struct {
		AssignmentOverride OverrideParams `json:"assignment_override"`
	}{AssignmentOverride: params}

	var res Override
	if _, err := c.do(ctx, http.MethodPost, url, body, &res); err != nil {
		return Override{}, fmt.Errorf("can't create override %q: %w", params.Title, err)
	}
	log.Printf("[DEBUG] created override %d %q for %d students", res.ID, params.Title, len(params.StudentIDs))
	return res, nil
}

// ListOverrides returns existing overrides for the assignment, paginated.
func (c *Client) ListOverrides(ctx context.Context, courseID, assignmentID int64) ([]Override, error) {
	var res []Override
	url := fmt.Sprintf("%s/courses/%d/assignments/%d/overrides?per_page=%d", c.BaseURL, courseID, assignmentID, perPage)
	for url != "" {
		var page []Override
		header, err := c.do(ctx, http.MethodGet, url, nil, &page)
		if err != nil {
			return nil, fmt.Errorf("can't list overrides for assignment %d: %w", assignmentID, err)
		}
		res = append(res, page...)
		url = NextLink(header.Get("Link"))
	}
	return res, nil
}

// DeleteOverride removes an existing override, used by the resync to replace
// stale windows.
func (c *Client) DeleteOverride(ctx context.Context, courseID, assignmentID, overrideID int64) error {
	url := fmt.Sprintf("%s/courses/%d/assignments/%d/overrides/%d", c.BaseURL, courseID, assignmentID, overrideID)
	if _, err := c.do(ctx, http.MethodDelete, url, nil, nil); err != nil {
		return fmt.Errorf("can't delete override %d: %w", overrideID, err)
	}
	return nil
}
