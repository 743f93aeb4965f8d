package metrics

import (
	"sync"
	"time"
)

// Metrics tracks process-wide pipeline counters, exposed over the
// optional monitoring HTTP endpoint.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	ItemsCollected     int64
	ItemsStored        int64
	ItemsRejected      int64
	DuplicatesFiltered int64
	DigestsPublished   int64
	MessagesSent       int64
	FailedChunks       int64
	SourceFailures     int64

	// Timings
	LastRunDuration    time.Duration
	TotalRunDuration   time.Duration
	AverageRunDuration time.Duration
	RunCount           int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddItemsCollected(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsCollected += int64(n)
}

func (m *Metrics) AddItemsStored(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsStored += int64(n)
}

func (m *Metrics) AddItemsRejected(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsRejected += int64(n)
}

func (m *Metrics) AddDuplicatesFiltered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered += int64(n)
}

func (m *Metrics) IncrementDigestsPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DigestsPublished++
}

func (m *Metrics) AddMessagesSent(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSent += int64(n)
}

func (m *Metrics) AddFailedChunks(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedChunks += int64(n)
}

func (m *Metrics) IncrementSourceFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourceFailures++
}

func (m *Metrics) RecordRunDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRunDuration = duration
	m.TotalRunDuration += duration
	m.RunCount++

	if m.RunCount > 0 {
		m.AverageRunDuration = m.TotalRunDuration / time.Duration(m.RunCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"items_collected":         m.ItemsCollected,
		"items_stored":            m.ItemsStored,
		"items_rejected":          m.ItemsRejected,
		"duplicates_filtered":     m.DuplicatesFiltered,
		"digests_published":       m.DigestsPublished,
		"messages_sent":           m.MessagesSent,
		"failed_chunks":           m.FailedChunks,
		"source_failures":         m.SourceFailures,
		"last_run_duration_ms":    m.LastRunDuration.Milliseconds(),
		"average_run_duration_ms": m.AverageRunDuration.Milliseconds(),
		"last_run_time":           m.LastRunTime.Format(time.RFC3339),
		"last_error_time":         m.LastErrorTime.Format(time.RFC3339),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}
