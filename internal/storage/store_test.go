package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/pilot/internal/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(sessionID string) *Run {
	return &Run{
		SessionID:      sessionID,
		Request:        "add a health endpoint",
		Success:        true,
		TotalTasks:     3,
		CompletedTasks: 3,
		TotalSteps:     4,
		Duration:       90 * time.Second,
		Snapshot:       []byte(`{"sessionId":"` + sessionID + `","phase":"completed"}`),
		Events:         []byte(`[{"type":"execution_completed"}]`),
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := sampleRun("sess-1")
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, run.Request, got.Request)
	assert.True(t, got.Success)
	assert.Equal(t, 3, got.CompletedTasks)
	assert.Equal(t, 90*time.Second, got.Duration)
	assert.JSONEq(t, string(run.Snapshot), string(got.Snapshot))
	assert.JSONEq(t, string(run.Events), string(got.Events))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSaveRun_Upsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := sampleRun("sess-1")
	run.Success = false
	run.CompletedTasks = 1
	require.NoError(t, s.SaveRun(ctx, run))

	run.Success = true
	run.CompletedTasks = 3
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, 3, got.CompletedTasks)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	perr := errors.AsPilotError(err)
	require.NotNil(t, perr)
	assert.Equal(t, errors.CodeSessionNotFound, perr.Code)
}

func TestSaveRun_EmptySessionID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.SaveRun(context.Background(), &Run{}))
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		run := sampleRun(id)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveRun(ctx, run))
	}

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].SessionID)
	assert.Equal(t, "old", runs[2].SessionID)
	// List omits the blobs.
	assert.Nil(t, runs[0].Snapshot)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, sampleRun("sess-1")))
	require.NoError(t, s.DeleteRun(ctx, "sess-1"))
	_, err := s.GetRun(ctx, "sess-1")
	assert.Error(t, err)

	// Deleting a missing run is not an error.
	assert.NoError(t, s.DeleteRun(ctx, "missing"))
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "nested", "pilot.db")
	s, err := Open("sqlite", dsn)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.SaveRun(context.Background(), sampleRun("sess-1")))
}

func TestOpen_UnknownDialect(t *testing.T) {
	_, err := Open("mongodb", "whatever")
	assert.Error(t, err)
}
