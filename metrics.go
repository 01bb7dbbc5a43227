package tissvalidator

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks engine activity using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	validationsTotal  atomic.Uint64
	validationsValid  atomic.Uint64
	validationsStream atomic.Uint64
	parseFailures     atomic.Uint64
	chunksTotal       atomic.Uint64
	findingsTotal     atomic.Uint64

	// Timing (stored as nanoseconds)
	validationTimeTotal atomic.Uint64
	validationTimeMin   atomic.Uint64
	validationTimeMax   atomic.Uint64

	// Reference lookups
	lookupHits   atomic.Uint64
	lookupMisses atomic.Uint64

	ruleTiming sync.Map // map[string]*ruleMetrics
}

// ruleMetrics tracks metrics for a single rule.
type ruleMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64
	findings    atomic.Uint64
	errors      atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.validationTimeMin.Store(^uint64(0))
	return m
}

// RecordValidation records a completed validation call.
func (m *Metrics) RecordValidation(duration time.Duration, r *Result) {
	m.validationsTotal.Add(1)
	if r != nil {
		if r.Valid {
			m.validationsValid.Add(1)
		}
		if r.Mode == ModeStream {
			m.validationsStream.Add(1)
		}
		m.findingsTotal.Add(uint64(len(r.Findings)))
	}

	ns := uint64(duration.Nanoseconds()) //nolint:gosec // durations are non-negative
	m.validationTimeTotal.Add(ns)

	for {
		old := m.validationTimeMin.Load()
		if ns >= old || m.validationTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.validationTimeMax.Load()
		if ns <= old || m.validationTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordParseFailure records a document or chunk that failed to parse.
func (m *Metrics) RecordParseFailure() {
	m.parseFailures.Add(1)
}

// RecordChunk records one guide validated in stream mode.
func (m *Metrics) RecordChunk() {
	m.chunksTotal.Add(1)
}

// RecordLookup records a reference-table lookup outcome.
func (m *Metrics) RecordLookup(found bool) {
	if found {
		m.lookupHits.Add(1)
	} else {
		m.lookupMisses.Add(1)
	}
}

// RecordRule records one rule execution.
func (m *Metrics) RecordRule(id string, duration time.Duration, findings int, failed bool) {
	rm := m.getOrCreateRuleMetrics(id)
	rm.invocations.Add(1)
	rm.totalTime.Add(uint64(duration.Nanoseconds())) //nolint:gosec // durations are non-negative
	rm.findings.Add(uint64(findings))                //nolint:gosec // counts are non-negative
	if failed {
		rm.errors.Add(1)
	}
}

func (m *Metrics) getOrCreateRuleMetrics(id string) *ruleMetrics {
	if v, ok := m.ruleTiming.Load(id); ok {
		return v.(*ruleMetrics)
	}
	actual, _ := m.ruleTiming.LoadOrStore(id, &ruleMetrics{})
	return actual.(*ruleMetrics)
}

// ValidationsTotal returns the number of validation calls.
func (m *Metrics) ValidationsTotal() uint64 {
	return m.validationsTotal.Load()
}

// ValidationsValid returns the number of calls that produced no finding.
func (m *Metrics) ValidationsValid() uint64 {
	return m.validationsValid.Load()
}

// ValidationsStream returns the number of calls served in stream mode.
func (m *Metrics) ValidationsStream() uint64 {
	return m.validationsStream.Load()
}

// ParseFailures returns the number of parse failures.
func (m *Metrics) ParseFailures() uint64 {
	return m.parseFailures.Load()
}

// ChunksTotal returns the number of streamed guides validated.
func (m *Metrics) ChunksTotal() uint64 {
	return m.chunksTotal.Load()
}

// FindingsTotal returns the number of findings reported.
func (m *Metrics) FindingsTotal() uint64 {
	return m.findingsTotal.Load()
}

// AverageValidationTime returns the average validation duration.
func (m *Metrics) AverageValidationTime() time.Duration {
	total := m.validationsTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.validationTimeTotal.Load() / total) //nolint:gosec // fits in int64
}

// MinValidationTime returns the minimum validation duration.
func (m *Metrics) MinValidationTime() time.Duration {
	v := m.validationTimeMin.Load()
	if v == ^uint64(0) {
		return 0
	}
	return time.Duration(v) //nolint:gosec // fits in int64
}

// MaxValidationTime returns the maximum validation duration.
func (m *Metrics) MaxValidationTime() time.Duration {
	return time.Duration(m.validationTimeMax.Load()) //nolint:gosec // fits in int64
}

// LookupHits returns the number of codes found in the reference table.
func (m *Metrics) LookupHits() uint64 {
	return m.lookupHits.Load()
}

// LookupMisses returns the number of codes absent from the reference table.
func (m *Metrics) LookupMisses() uint64 {
	return m.lookupMisses.Load()
}

// RuleStats holds statistics for one rule.
type RuleStats struct {
	ID          string        `json:"id"`
	Invocations uint64        `json:"invocations"`
	TotalTime   time.Duration `json:"total_time_ns"`
	AvgTime     time.Duration `json:"avg_time_ns"`
	Findings    uint64        `json:"findings"`
	Errors      uint64        `json:"errors"`
}

func (rm *ruleMetrics) stats(id string) RuleStats {
	inv := rm.invocations.Load()
	total := rm.totalTime.Load()
	var avg time.Duration
	if inv > 0 {
		avg = time.Duration(total / inv) //nolint:gosec // fits in int64
	}
	return RuleStats{
		ID:          id,
		Invocations: inv,
		TotalTime:   time.Duration(total), //nolint:gosec // fits in int64
		AvgTime:     avg,
		Findings:    rm.findings.Load(),
		Errors:      rm.errors.Load(),
	}
}

// RuleStats returns statistics for a specific rule.
func (m *Metrics) RuleStats(id string) (RuleStats, bool) {
	v, ok := m.ruleTiming.Load(id)
	if !ok {
		return RuleStats{ID: id}, false
	}
	return v.(*ruleMetrics).stats(id), true
}

// AllRuleStats returns statistics for every rule, sorted by ID.
func (m *Metrics) AllRuleStats() []RuleStats {
	var stats []RuleStats
	m.ruleTiming.Range(func(key, value any) bool {
		stats = append(stats, value.(*ruleMetrics).stats(key.(string)))
		return true
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.validationsTotal.Store(0)
	m.validationsValid.Store(0)
	m.validationsStream.Store(0)
	m.parseFailures.Store(0)
	m.chunksTotal.Store(0)
	m.findingsTotal.Store(0)
	m.validationTimeTotal.Store(0)
	m.validationTimeMin.Store(^uint64(0))
	m.validationTimeMax.Store(0)
	m.lookupHits.Store(0)
	m.lookupMisses.Store(0)
	m.ruleTiming.Range(func(key, _ any) bool {
		m.ruleTiming.Delete(key)
		return true
	})
}

// --- Prometheus export ---

var (
	descValidations = prometheus.NewDesc("tissguard_validations_total",
		"Validation calls by outcome and mode.", []string{"outcome", "mode"}, nil)
	descParseFailures = prometheus.NewDesc("tissguard_parse_failures_total",
		"Documents or guides that were not well-formed XML.", nil, nil)
	descChunks = prometheus.NewDesc("tissguard_stream_chunks_total",
		"Guides validated in stream mode.", nil, nil)
	descFindings = prometheus.NewDesc("tissguard_findings_total",
		"Findings reported.", nil, nil)
	descAvgTime = prometheus.NewDesc("tissguard_validation_avg_seconds",
		"Average validation wall time.", nil, nil)
	descLookups = prometheus.NewDesc("tissguard_tuss_lookups_total",
		"Reference-table lookups by result.", []string{"result"}, nil)
	descRuleRuns = prometheus.NewDesc("tissguard_rule_invocations_total",
		"Rule executions.", []string{"rule"}, nil)
	descRuleSeconds = prometheus.NewDesc("tissguard_rule_seconds_total",
		"Cumulative rule execution time.", []string{"rule"}, nil)
	descRuleFindings = prometheus.NewDesc("tissguard_rule_findings_total",
		"Findings reported per rule.", []string{"rule"}, nil)
)

// Collector exposes the metrics to a Prometheus registry.
func (m *Metrics) Collector() prometheus.Collector {
	return metricsCollector{m: m}
}

type metricsCollector struct {
	m *Metrics
}

func (c metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descValidations
	ch <- descParseFailures
	ch <- descChunks
	ch <- descFindings
	ch <- descAvgTime
	ch <- descLookups
	ch <- descRuleRuns
	ch <- descRuleSeconds
	ch <- descRuleFindings
}

func (c metricsCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.m
	total := float64(m.validationsTotal.Load())
	valid := float64(m.validationsValid.Load())
	stream := float64(m.validationsStream.Load())

	ch <- prometheus.MustNewConstMetric(descValidations, prometheus.CounterValue, valid, "valid", "all")
	ch <- prometheus.MustNewConstMetric(descValidations, prometheus.CounterValue, total-valid, "invalid", "all")
	ch <- prometheus.MustNewConstMetric(descValidations, prometheus.CounterValue, stream, "all", string(ModeStream))
	ch <- prometheus.MustNewConstMetric(descParseFailures, prometheus.CounterValue, float64(m.parseFailures.Load()))
	ch <- prometheus.MustNewConstMetric(descChunks, prometheus.CounterValue, float64(m.chunksTotal.Load()))
	ch <- prometheus.MustNewConstMetric(descFindings, prometheus.CounterValue, float64(m.findingsTotal.Load()))
	ch <- prometheus.MustNewConstMetric(descAvgTime, prometheus.GaugeValue, m.AverageValidationTime().Seconds())
	ch <- prometheus.MustNewConstMetric(descLookups, prometheus.CounterValue, float64(m.lookupHits.Load()), "found")
	ch <- prometheus.MustNewConstMetric(descLookups, prometheus.CounterValue, float64(m.lookupMisses.Load()), "missing")

	for _, s := range m.AllRuleStats() {
		ch <- prometheus.MustNewConstMetric(descRuleRuns, prometheus.CounterValue, float64(s.Invocations), s.ID)
		ch <- prometheus.MustNewConstMetric(descRuleSeconds, prometheus.CounterValue, s.TotalTime.Seconds(), s.ID)
		ch <- prometheus.MustNewConstMetric(descRuleFindings, prometheus.CounterValue, float64(s.Findings), s.ID)
	}
}
