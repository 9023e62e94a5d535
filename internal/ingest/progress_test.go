package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker(time.Hour)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	tr.now = func() time.Time { return now }

	id := tr.Create(0)
	snap, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, TaskProcessing, snap.Status)
	assert.Equal(t, id, snap.TaskID)
	assert.Zero(t, snap.Percentage)
	assert.Nil(t, snap.ETASeconds)

	now = start.Add(10 * time.Second)
	tr.Update(id, 250, 1000, "imported 250 / 1000 rows")

	snap, ok = tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, 250, snap.Processed)
	assert.Equal(t, 1000, snap.Total)
	assert.Equal(t, 25.0, snap.Percentage)
	assert.Equal(t, 10.0, snap.ElapsedSeconds)
	assert.Equal(t, 25.0, snap.Rate)
	require.NotNil(t, snap.ETASeconds)
	assert.Equal(t, 30.0, *snap.ETASeconds)

	tr.Complete(id, "imported 1000 rows")
	snap, _ = tr.Get(id)
	assert.Equal(t, TaskCompleted, snap.Status)
	assert.Equal(t, "imported 1000 rows", snap.Message)
	assert.Nil(t, snap.ETASeconds)
}

func TestTracker_CompleteRaisesUnknownTotal(t *testing.T) {
	tr := NewTracker(time.Hour)
	id := tr.Create(0)
	tr.Update(id, 40, 0, "")
	tr.Complete(id, "done")

	snap, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, 40, snap.Total)
	assert.Equal(t, 100.0, snap.Percentage)
}

func TestTracker_Fail(t *testing.T) {
	tr := NewTracker(time.Hour)
	id := tr.Create(10)
	tr.Fail(id, "import failed: boom")

	snap, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, TaskFailed, snap.Status)
	assert.Equal(t, "import failed: boom", snap.Message)
}

func TestTracker_UnknownID(t *testing.T) {
	tr := NewTracker(time.Hour)
	tr.Update("missing", 1, 1, "")
	tr.Complete("missing", "")
	_, ok := tr.Get("missing")
	assert.False(t, ok)
}

func TestTracker_Sweep(t *testing.T) {
	tr := NewTracker(20 * time.Millisecond)
	old := tr.Create(1)

	time.Sleep(40 * time.Millisecond)
	fresh := tr.Create(1)

	_, ok := tr.Get(old)
	assert.False(t, ok, "expired tasks are invisible before the sweep")

	assert.Equal(t, 1, tr.Sweep())
	assert.Equal(t, 0, tr.Sweep())

	_, ok = tr.Get(fresh)
	assert.True(t, ok)
}

func TestNewTracker_DefaultRetention(t *testing.T) {
	tr := NewTracker(0)
	assert.Equal(t, DefaultRetention, tr.ttl)
}
