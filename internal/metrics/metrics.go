// Package metrics defines the prometheus instrumentation the matcher
// and apply packages record against, wired into a registry the caller
// supplies rather than a process-global default.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder holds every metric the engine updates. A nil *Recorder is
// valid everywhere it's used (methods are nil-safe no-ops), so callers
// that don't want metrics can skip New entirely.
type Recorder struct {
	DocumentsMatched   prometheus.Counter
	DocumentsUnmatched prometheus.Counter
	RegexCompiles      prometheus.Counter
	CorruptDocuments   prometheus.Counter
	ApplyOperations    *prometheus.CounterVec
	MatchDuration      prometheus.Histogram
}

// New builds a Recorder and, if reg is non-nil, registers its
// collectors against it.
func New(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		DocumentsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jql_documents_matched_total",
			Help: "Documents for which Matched returned true.",
		}),
		DocumentsUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jql_documents_unmatched_total",
			Help: "Documents for which Matched returned false.",
		}),
		RegexCompiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jql_regex_compiles_total",
			Help: "Regex patterns compiled for the re operator.",
		}),
		CorruptDocuments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jql_corrupt_documents_total",
			Help: "Documents treated as non-matches due to BinDoc corruption.",
		}),
		ApplyOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jql_apply_operations_total",
			Help: "Apply/upsert/delete operations performed, labeled by kind.",
		}, []string{"kind"}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jql_match_duration_seconds",
			Help:    "Wall time of a single Matched call.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			r.DocumentsMatched, r.DocumentsUnmatched, r.RegexCompiles,
			r.CorruptDocuments, r.ApplyOperations, r.MatchDuration,
		)
	}
	return r
}

func (r *Recorder) matched(ok bool) {
	if r == nil {
		return
	}
	if ok {
		r.DocumentsMatched.Inc()
	} else {
		r.DocumentsUnmatched.Inc()
	}
}

// RecordMatch updates the matched/unmatched counters.
func (r *Recorder) RecordMatch(ok bool) { r.matched(ok) }

// RecordCorruptDocument increments the corruption counter.
func (r *Recorder) RecordCorruptDocument() {
	if r == nil {
		return
	}
	r.CorruptDocuments.Inc()
}

// RecordRegexCompile increments the regex-compile counter.
func (r *Recorder) RecordRegexCompile() {
	if r == nil {
		return
	}
	r.RegexCompiles.Inc()
}

// RecordApply increments the apply-operations counter for kind.
func (r *Recorder) RecordApply(kind string) {
	if r == nil {
		return
	}
	r.ApplyOperations.WithLabelValues(kind).Inc()
}

// ObserveMatchDuration records seconds spent in one Matched call.
func (r *Recorder) ObserveMatchDuration(seconds float64) {
	if r == nil {
		return
	}
	r.MatchDuration.Observe(seconds)
}
