package download

import "sync/atomic"

// ProgressEntry holds the observable byte counters for one worker. Each field
// is an atomically-updated scalar written only by the owning worker and read
// lock-free by the aggregator. Readers accept a transient undercount: the
// values feed user-facing display only, never control decisions, so a stale
// read is merely behind, not wrong.
type ProgressEntry struct {
	downloaded atomic.Int64
	total      atomic.Int64
}

// Set records the current received byte count and, when known, the expected
// total. Only the owning worker writes an entry.
func (e *ProgressEntry) Set(received, total int64) {
	e.downloaded.Store(received)
	if total >= 0 {
		e.total.Store(total)
	}
}

// Snapshot returns the entry's current (downloaded, total) pair.
func (e *ProgressEntry) Snapshot() (int64, int64) {
	return e.downloaded.Load(), e.total.Load()
}

// Tracker owns one ProgressEntry per worker.
type Tracker struct {
	entries []ProgressEntry
}

func NewTracker(workers int) *Tracker {
	return &Tracker{entries: make([]ProgressEntry, workers)}
}

func (t *Tracker) Entry(i int) *ProgressEntry {
	return &t.entries[i]
}

func (t *Tracker) Workers() int {
	return len(t.entries)
}

// Aggregate sums all entries into session-wide (downloaded, expected) totals.
func (t *Tracker) Aggregate() (downloaded, expected int64) {
	for i := range t.entries {
		d, total := t.entries[i].Snapshot()
		downloaded += d
		expected += total
	}
	return downloaded, expected
}
