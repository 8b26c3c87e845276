package observability

import (
	"sync"
	"time"
)

// Job outcomes as recorded by the worker.
const (
	JobDone   = "done"
	JobRetry  = "retry"
	JobFailed = "failed"
)

// JobMetrics keeps per-process worker counters for the /stats endpoint.
// Prometheus carries the same outcomes for scraping; this view adds the
// timestamps an operator checks first when notifications stop arriving.
type JobMetrics struct {
	mu     sync.Mutex
	byType map[string]*JobTypeStats
	total  JobTypeStats

	lastSuccess time.Time
	lastFailure time.Time
}

type JobTypeStats struct {
	Claimed       uint64        `json:"claimed"`
	Done          uint64        `json:"done"`
	Retried       uint64        `json:"retried"`
	DeadLettered  uint64        `json:"deadLettered"`
	DurationCount uint64        `json:"-"`
	DurationTotal time.Duration `json:"-"`
	MaxDuration   time.Duration `json:"-"`
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{byType: make(map[string]*JobTypeStats)}
}

func (m *JobMetrics) statsFor(jobType string) *JobTypeStats {
	s, ok := m.byType[jobType]
	if !ok {
		s = &JobTypeStats{}
		m.byType[jobType] = s
	}
	return s
}

func (m *JobMetrics) Claimed(jobType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statsFor(jobType).Claimed++
	m.total.Claimed++
}

// Record books one finished execution under outcome (JobDone, JobRetry or JobFailed).
func (m *JobMetrics) Record(jobType, outcome string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, s := range []*JobTypeStats{m.statsFor(jobType), &m.total} {
		switch outcome {
		case JobDone:
			s.Done++
		case JobRetry:
			s.Retried++
		case JobFailed:
			s.DeadLettered++
		}
		s.DurationCount++
		s.DurationTotal += d
		if d > s.MaxDuration {
			s.MaxDuration = d
		}
	}

	if outcome == JobDone {
		m.lastSuccess = now
	} else {
		m.lastFailure = now
	}
}

type JobMetricsSnapShot struct {
	JobTypeStats
	AverageDuration time.Duration
	LastSuccessAt   *time.Time
	LastFailureAt   *time.Time
	ByType          map[string]JobTypeStats
}

func (m *JobMetrics) Snapshot() JobMetricsSnapShot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := JobMetricsSnapShot{
		JobTypeStats: m.total,
		ByType:       make(map[string]JobTypeStats, len(m.byType)),
	}
	for t, s := range m.byType {
		out.ByType[t] = *s
	}
	if m.total.DurationCount > 0 {
		out.AverageDuration = m.total.DurationTotal / time.Duration(m.total.DurationCount)
	}
	if !m.lastSuccess.IsZero() {
		ts := m.lastSuccess
		out.LastSuccessAt = &ts
	}
	if !m.lastFailure.IsZero() {
		ts := m.lastFailure
		out.LastFailureAt = &ts
	}
	return out
}
