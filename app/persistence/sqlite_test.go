package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Initialize())
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestSQLiteStore_Versions(t *testing.T) {
	store := makeTestStore(t)

	require.NoError(t, store.SaveVersion(VersionInfo{Version: "abcd1234", Rows: 12}))
	require.NoError(t, store.SaveVersion(VersionInfo{Version: "aaaa1111", Rows: 12}))

	versions, err := store.LoadVersions()
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "aaaa1111", versions[0].Version, "ordered by hash")
	assert.False(t, versions[0].Published)
	assert.False(t, versions[0].UpdatedAt.IsZero())

	// upsert with publish results
	require.NoError(t, store.SaveVersion(VersionInfo{Version: "abcd1234", Rows: 12,
		QuizID: 555, FileID: 333, FileURL: "https://lms/files/333/download", Published: true}))
	versions, err = store.LoadVersions()
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, int64(555), versions[1].QuizID)
	assert.True(t, versions[1].Published)
}

func TestSQLiteStore_Assignments(t *testing.T) {
	store := makeTestStore(t)
	require.NoError(t, store.SaveVersion(VersionInfo{Version: "abcd1234", Rows: 5}))

	assignments := []AssignmentInfo{
		{StudentID: 12, StudentName: "Bob", Version: "abcd1234", OverrideID: 7},
		{StudentID: 11, StudentName: "Ann", Version: "abcd1234"},
	}
	require.NoError(t, store.SaveAssignments(assignments))

	loaded, err := store.LoadAssignments()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, int64(11), loaded[0].StudentID, "ordered by student id")
	assert.Equal(t, int64(7), loaded[1].OverrideID)

	// replacement drops stale students
	require.NoError(t, store.SaveAssignments([]AssignmentInfo{{StudentID: 13, StudentName: "Cid", Version: "abcd1234"}}))
	loaded, err = store.LoadAssignments()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(13), loaded[0].StudentID)
}

func TestSQLiteStore_Runs(t *testing.T) {
	store := makeTestStore(t)

	now := time.Now()
	require.NoError(t, store.RecordRun(RunInfo{ID: "run-1", StartedAt: now.Add(-2 * time.Hour),
		FinishedAt: now.Add(-2*time.Hour + time.Minute), Status: RunStatusPartial, Versions: 10, Failed: 2}))
	require.NoError(t, store.RecordRun(RunInfo{ID: "run-2", StartedAt: now.Add(-time.Hour),
		FinishedAt: now.Add(-time.Hour + time.Minute), Status: RunStatusOK, Versions: 10}))

	runs, err := store.LoadRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID, "most recent first")
	assert.Equal(t, RunStatusPartial, runs[1].Status)
	assert.Equal(t, 2, runs[1].Failed)

	runs, err = store.LoadRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestNewSQLiteStore_BadPath(t *testing.T) {
	_, err := NewSQLiteStore("/no/such/dir/test.db")
	assert.Error(t, err)
}
