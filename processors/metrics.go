package processors

import (
	"sort"
	"sync"
	"time"

	"github.com/gburgyan/go-timing"
	container "github.com/js-lib-com/tiny-container-sub006"
)

// OperationStats is what the Meter knows about one operation.
type OperationStats struct {
	Invocations int64
	Failures    int64
	Total       time.Duration
	Max         time.Duration
}

// Mean returns the average duration of an invocation.
func (s OperationStats) Mean() time.Duration {
	if s.Invocations == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Invocations)
}

// Meter stores per-operation statistics. The composition root creates one and hands it to
// the Metrics processor and to whatever reports on it.
type Meter struct {
	mu    sync.Mutex
	stats map[string]*OperationStats
}

// NewMeter creates an empty meter.
func NewMeter() *Meter {
	return &Meter{stats: map[string]*OperationStats{}}
}

func (m *Meter) record(name string, d time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[name]
	if !ok {
		s = &OperationStats{}
		m.stats[name] = s
	}
	s.Invocations++
	if failed {
		s.Failures++
	}
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
}

// Stats returns the statistics for one operation.
func (m *Meter) Stats(name string) (OperationStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[name]
	if !ok {
		return OperationStats{}, false
	}
	return *s, true
}

// Operations returns the names of every metered operation, sorted.
func (m *Meter) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.stats))
	for name := range m.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metrics records invocation counts, failures and durations into a Meter. With WithTiming
// it also opens a go-timing node named after the operation so the call shows up in the
// caller's timing tree; the invocation context must then descend from timing.Root.
type Metrics struct {
	meter      *Meter
	onlyTagged bool
	timing     bool
	now        func() time.Time
}

// MetricsOption configures a Metrics processor.
type MetricsOption func(*Metrics)

// OnlyTagged restricts metering to operations tagged with TagMetrics.
func OnlyTagged() MetricsOption {
	return func(m *Metrics) {
		m.onlyTagged = true
	}
}

// WithTiming enables go-timing nodes.
func WithTiming() MetricsOption {
	return func(m *Metrics) {
		m.timing = true
	}
}

// NewMetrics creates a metrics processor writing to meter.
func NewMetrics(meter *Meter, opts ...MetricsOption) *Metrics {
	m := &Metrics{meter: meter, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Metrics) Priority() container.Priority {
	return container.PriorityMetrics
}

func (m *Metrics) Bind(op *container.Operation) bool {
	return !m.onlyTagged || op.HasTag(TagMetrics)
}

func (m *Metrics) Invoke(chain *container.Chain, inv *container.Invocation) (any, error) {
	name := inv.Operation.FullName()
	if m.timing {
		parent := inv.Context
		tCtx, complete := timing.Start(parent, name)
		defer func() {
			complete()
			inv.Context = parent
		}()
		inv.Context = tCtx
	}

	start := m.now()
	failed := true
	defer func() {
		m.meter.record(name, m.now().Sub(start), failed)
	}()

	result, err := chain.Proceed(inv)
	failed = err != nil
	return result, err
}
