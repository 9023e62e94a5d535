package ingest

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// TaskStatus is the state of an import task.
type TaskStatus string

const (
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// DefaultRetention is how long a task stays visible after it starts.
const DefaultRetention = time.Hour

type task struct {
	id        string
	status    TaskStatus
	processed int
	total     int
	message   string
	startedAt time.Time
}

// Snapshot is a point-in-time view of a task with derived rates.
type Snapshot struct {
	TaskID         string     `json:"task_id"`
	Status         TaskStatus `json:"status"`
	Processed      int        `json:"processed"`
	Total          int        `json:"total"`
	Message        string     `json:"message"`
	StartedAt      time.Time  `json:"started_at"`
	Percentage     float64    `json:"percentage"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
	Rate           float64    `json:"rate"`
	ETASeconds     *float64   `json:"eta_seconds,omitempty"`
}

// Tracker records the progress of running imports. Records expire at
// start time plus retention and are only reclaimed by Sweep.
type Tracker struct {
	mu    sync.Mutex
	tasks *gocache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewTracker creates a Tracker. A non-positive retention uses
// DefaultRetention.
func NewTracker(retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{
		// No janitor: cleanup interval 0.
		tasks: gocache.New(retention, 0),
		ttl:   retention,
		now:   time.Now,
	}
}

// Create registers a new processing task and returns its id.
func (t *Tracker) Create(total int) string {
	id := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks.Set(id, &task{
		id:        id,
		status:    TaskProcessing,
		total:     total,
		message:   "starting",
		startedAt: t.now(),
	}, t.ttl)
	return id
}

func (t *Tracker) update(id string, fn func(*task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.tasks.Get(id); ok {
		fn(v.(*task))
	}
}

// Update records progress for a running task. Unknown ids are ignored.
func (t *Tracker) Update(id string, processed, total int, message string) {
	t.update(id, func(tk *task) {
		tk.processed = processed
		tk.total = total
		tk.message = message
	})
}

// Complete marks a task finished.
func (t *Tracker) Complete(id, message string) {
	t.update(id, func(tk *task) {
		tk.status = TaskCompleted
		tk.message = message
		if tk.total < tk.processed {
			tk.total = tk.processed
		}
	})
}

// Fail marks a task failed.
func (t *Tracker) Fail(id, message string) {
	t.update(id, func(tk *task) {
		tk.status = TaskFailed
		tk.message = message
	})
}

// Get returns a snapshot of the task. Unknown and expired ids report false.
func (t *Tracker) Get(id string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.tasks.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return v.(*task).snapshot(t.now()), true
}

// Sweep removes expired tasks and returns how many were removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	before := t.tasks.ItemCount()
	t.tasks.DeleteExpired()
	return before - t.tasks.ItemCount()
}

func (tk *task) snapshot(now time.Time) Snapshot {
	s := Snapshot{
		TaskID:    tk.id,
		Status:    tk.status,
		Processed: tk.processed,
		Total:     tk.total,
		Message:   tk.message,
		StartedAt: tk.startedAt,
	}

	elapsed := now.Sub(tk.startedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	s.ElapsedSeconds = round2(elapsed)

	if tk.total > 0 {
		s.Percentage = round2(float64(tk.processed) / float64(tk.total) * 100)
	}
	if elapsed > 0 {
		s.Rate = round2(float64(tk.processed) / elapsed)
	}
	if tk.status == TaskProcessing && s.Rate > 0 && tk.total > tk.processed {
		eta := round2(float64(tk.total-tk.processed) / (float64(tk.processed) / elapsed))
		s.ETASeconds = &eta
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
