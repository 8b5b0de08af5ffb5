package engine

import (
	"sync"
	"time"
)

// Progress is a snapshot emitted each time an item finishes. During fetch,
// snapshots with Transfer set report bytes received for an item still in
// flight; Completed does not advance for those.
type Progress struct {
	Phase      string // "check" or "fetch"
	Item       string
	Status     string
	Detail     string
	Completed  int
	Total      int
	Failed     int
	Elapsed    time.Duration
	Transfer   bool
	Bytes      int64
	BytesTotal int64 // 0 when the server sent no length
}

// defaultTransferInterval limits how often transfer snapshots are emitted.
const defaultTransferInterval = time.Second

// ProgressFunc receives progress snapshots. It may be called from pool
// workers, but calls are serialized.
type ProgressFunc func(Progress)

// tracker accumulates per-item completions from pool workers.
type tracker struct {
	mu           sync.Mutex
	phase        string
	total        int
	completed    int
	failed       int
	startTime    time.Time
	lastTransfer time.Time
	interval     time.Duration
	fn           ProgressFunc
}

func newTracker(phase string, total int, fn ProgressFunc) *tracker {
	now := time.Now()
	return &tracker{
		phase:        phase,
		total:        total,
		startTime:    now,
		lastTransfer: now,
		interval:     defaultTransferInterval,
		fn:           fn,
	}
}

// done records one finished item and notifies the callback.
func (t *tracker) done(item, status, detail string, failed bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed++
	if failed {
		t.failed++
	}
	if t.fn == nil {
		return
	}
	t.fn(Progress{
		Phase:     t.phase,
		Item:      item,
		Status:    status,
		Detail:    detail,
		Completed: t.completed,
		Total:     t.total,
		Failed:    t.failed,
		Elapsed:   time.Since(t.startTime),
	})
}

// transfer reports bytes received for an in-flight item, at most once per
// interval across all workers.
func (t *tracker) transfer(item string, received, total int64) {
	if t == nil || t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.Sub(t.lastTransfer) < t.interval {
		return
	}
	t.lastTransfer = now
	t.fn(Progress{
		Phase:      t.phase,
		Item:       item,
		Status:     "downloading",
		Completed:  t.completed,
		Total:      t.total,
		Failed:     t.failed,
		Elapsed:    now.Sub(t.startTime),
		Transfer:   true,
		Bytes:      received,
		BytesTotal: total,
	})
}
