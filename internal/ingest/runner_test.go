package ingest

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

type recordedImport struct {
	success bool
	rows    int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recordedImport
}

func (f *fakeRecorder) RecordImport(success bool, rows int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedImport{success, rows})
}

func TestRunner_Success(t *testing.T) {
	sink := &fakeSink{}
	inv := &countingInvalidator{}
	rec := &fakeRecorder{}
	r := NewRunner(NewPipeline(sink), NewTracker(time.Hour), inv, rec, 2)

	path := writeCSV(t, "up.csv", csvRows(5)...)
	id := r.Start(context.Background(), path, true)
	r.Wait()

	snap, ok := r.Tracker().Get(id)
	require.True(t, ok)
	assert.Equal(t, TaskCompleted, snap.Status)
	assert.Equal(t, 5, snap.Processed)
	assert.Equal(t, "imported 5 rows", snap.Message)

	assert.Equal(t, 1, inv.n)
	assert.Equal(t, []recordedImport{{true, 5}}, rec.seen)
	assert.Len(t, sink.rows(), 5)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "upload removed after import")
}

func TestRunner_Failure(t *testing.T) {
	sink := &fakeSink{failAt: 1, failWith: errors.New("boom")}
	inv := &countingInvalidator{}
	rec := &fakeRecorder{}
	r := NewRunner(NewPipeline(sink), NewTracker(time.Hour), inv, rec, 10)

	path := writeCSV(t, "up.csv", csvRows(3)...)
	id := r.Start(context.Background(), path, false)
	r.Wait()

	snap, ok := r.Tracker().Get(id)
	require.True(t, ok)
	assert.Equal(t, TaskFailed, snap.Status)
	assert.Equal(t, "import failed: boom", snap.Message)
	assert.Zero(t, inv.n, "nothing committed, nothing to invalidate")
	assert.Equal(t, []recordedImport{{false, 0}}, rec.seen)

	_, err := os.Stat(path)
	assert.NoError(t, err, "file kept when removeAfter is false")
}

func TestRunner_NilCollaborators(t *testing.T) {
	r := NewRunner(NewPipeline(&fakeSink{}), NewTracker(time.Hour), nil, nil, 0)
	id := r.Start(context.Background(), writeCSV(t, "up.csv", csvRows(1)...), false)
	r.Wait()

	snap, ok := r.Tracker().Get(id)
	require.True(t, ok)
	assert.Equal(t, TaskCompleted, snap.Status)
}
