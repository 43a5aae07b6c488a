package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskfolk/agendo/storage"
)

func strPtr(s string) *string { return &s }

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(Config{
		Path:     filepath.Join(t.TempDir(), "agendo.db"),
		PoolSize: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestTaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	completed := time.Date(2025, 1, 7, 12, 0, 0, 0, time.UTC)

	task := &storage.Task{
		ID:          "gym",
		OwnerID:     "alice",
		Title:       "Gym",
		Note:        "leg day",
		Color:       "#00ff00",
		Status:      "open",
		Priority:    2,
		Type:        "habit",
		Start:       &start,
		End:         &end,
		Interval:    storage.IntervalWeekly,
		Infinite:    true,
		CompletedAt: &completed,
	}
	require.NoError(t, s.CreateTask(ctx, task))

	got, err := s.GetTask(ctx, "alice", "gym")
	require.NoError(t, err)

	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, task.OwnerID, got.OwnerID)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, task.Note, got.Note)
	assert.Equal(t, task.Color, got.Color)
	assert.Equal(t, task.Status, got.Status)
	assert.Equal(t, task.Priority, got.Priority)
	assert.Equal(t, task.Type, got.Type)
	assert.Equal(t, storage.IntervalWeekly, got.Interval)
	assert.True(t, got.Infinite)
	require.NotNil(t, got.Start)
	assert.True(t, got.Start.Equal(start))
	require.NotNil(t, got.End)
	assert.True(t, got.End.Equal(end))
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(completed))
	assert.False(t, got.Created.IsZero())
}

func TestTaskNullableColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTask(ctx, &storage.Task{
		ID:      "bare",
		OwnerID: "alice",
		Title:   "Unscheduled",
	}))

	got, err := s.GetTask(ctx, "alice", "bare")
	require.NoError(t, err)
	assert.Nil(t, got.Start)
	assert.Nil(t, got.End)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, storage.IntervalNone, got.Interval)
	assert.False(t, got.Infinite)
}

func TestTaskErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateTask(ctx, &storage.Task{OwnerID: "alice"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	require.NoError(t, s.CreateTask(ctx, &storage.Task{ID: "t1", OwnerID: "alice"}))
	err = s.CreateTask(ctx, &storage.Task{ID: "t1", OwnerID: "alice"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.GetTask(ctx, "alice", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetTask(ctx, "bob", "t1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.UpdateTask(ctx, &storage.Task{ID: "missing", OwnerID: "alice"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.DeleteTask(ctx, "alice", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &storage.Task{ID: "t1", OwnerID: "alice", Title: "before"}
	require.NoError(t, s.CreateTask(ctx, task))

	task.Title = "after"
	task.Interval = storage.IntervalDaily
	require.NoError(t, s.UpdateTask(ctx, task))

	got, err := s.GetTask(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
	assert.Equal(t, storage.IntervalDaily, got.Interval)
}

func TestListTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTask(ctx, &storage.Task{ID: "a", OwnerID: "alice"}))
	require.NoError(t, s.CreateTask(ctx, &storage.Task{ID: "b", OwnerID: "alice"}))
	require.NoError(t, s.CreateTask(ctx, &storage.Task{ID: "c", OwnerID: "bob"}))

	tasks, err := s.ListTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = s.ListTasks(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestOverrideRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	date := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	newStart := time.Date(2025, 1, 20, 11, 0, 0, 0, time.UTC)

	ov := &storage.Override{
		TaskID: "gym",
		Date:   date,
		Type:   storage.OverrideModified,
		Data: storage.InstancePatch{
			Note:  strPtr("arm day"),
			Start: &newStart,
		},
	}
	require.NoError(t, s.PutOverride(ctx, ov))
	assert.NotEmpty(t, ov.ID)

	got, err := s.GetOverride(ctx, "gym", date)
	require.NoError(t, err)
	assert.Equal(t, ov.ID, got.ID)
	assert.Equal(t, storage.OverrideModified, got.Type)
	assert.Equal(t, date, got.Date)
	require.NotNil(t, got.Data.Note)
	assert.Equal(t, "arm day", *got.Data.Note)
	require.NotNil(t, got.Data.Start)
	assert.True(t, got.Data.Start.Equal(newStart))
}

func TestPutOverride_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	date := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	first := &storage.Override{
		TaskID: "gym",
		Date:   date,
		Type:   storage.OverrideModified,
		Data:   storage.InstancePatch{Note: strPtr("first")},
	}
	require.NoError(t, s.PutOverride(ctx, first))

	second := &storage.Override{
		TaskID: "gym",
		Date:   date,
		Type:   storage.OverrideSkip,
	}
	require.NoError(t, s.PutOverride(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := s.GetOverride(ctx, "gym", date)
	require.NoError(t, err)
	assert.Equal(t, storage.OverrideSkip, got.Type)
	assert.Nil(t, got.Data.Note)

	err = s.PutOverride(ctx, &storage.Override{Date: date})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestPutOverride_NormalizesDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutOverride(ctx, &storage.Override{
		TaskID: "gym",
		Date:   time.Date(2025, 1, 20, 15, 30, 0, 0, time.UTC),
		Type:   storage.OverrideSkip,
	}))

	got, err := s.GetOverride(ctx, "gym", time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), got.Date)
}

func TestListOverrides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	put := func(taskID string, day int) {
		require.NoError(t, s.PutOverride(ctx, &storage.Override{
			TaskID: taskID,
			Date:   time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
			Type:   storage.OverrideSkip,
		}))
	}
	put("t1", 10)
	put("t1", 20)
	put("t2", 15)
	put("t3", 12)

	got, err := s.ListOverrides(ctx, []string{"t1", "t2"}, nil, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	lo := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2025, 1, 18, 0, 0, 0, 0, time.UTC)
	got, err = s.ListOverrides(ctx, []string{"t1", "t2"}, &lo, &hi)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].TaskID)

	// Inclusive bounds.
	lo = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	hi = time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	got, err = s.ListOverrides(ctx, []string{"t1"}, &lo, &hi)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListOverrides(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteOverride(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	date := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutOverride(ctx, &storage.Override{
		TaskID: "gym",
		Date:   date,
		Type:   storage.OverrideSkip,
	}))

	require.NoError(t, s.DeleteOverride(ctx, "gym", date))
	err := s.DeleteOverride(ctx, "gym", date)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteTask_CascadesOverrides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTask(ctx, &storage.Task{ID: "t1", OwnerID: "alice"}))
	date := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutOverride(ctx, &storage.Override{TaskID: "t1", Date: date, Type: storage.OverrideSkip}))

	require.NoError(t, s.DeleteTask(ctx, "alice", "t1"))

	_, err := s.GetOverride(ctx, "t1", date)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agendo.db")
	ctx := context.Background()

	s, err := Open(Config{Path: path, PoolSize: 1})
	require.NoError(t, err)

	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateTask(ctx, &storage.Task{
		ID:       "gym",
		OwnerID:  "alice",
		Title:    "Gym",
		Start:    &start,
		Interval: storage.IntervalWeekly,
		Infinite: true,
	}))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: path, PoolSize: 1})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetTask(ctx, "alice", "gym")
	require.NoError(t, err)
	assert.Equal(t, "Gym", got.Title)
	assert.Equal(t, storage.IntervalWeekly, got.Interval)
}
