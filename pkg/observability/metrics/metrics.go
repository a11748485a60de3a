package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	reportsGenerated     atomic.Int64
	correlationRuns      atomic.Int64
	correlationsUpserted atomic.Int64
	correlationsFlagged  atomic.Int64
	correlationFailures  atomic.Int64
	notFoundLookups      atomic.Int64
	triggerEventsSkipped atomic.Int64
)

func ObserveReport() {
	reportsGenerated.Add(1)
}

func ObserveCorrelationRun(written, flagged int, failed bool) {
	correlationRuns.Add(1)
	correlationsUpserted.Add(int64(written))
	correlationsFlagged.Add(int64(flagged))
	if failed {
		correlationFailures.Add(1)
	}
}

func ObserveNotFound() {
	notFoundLookups.Add(1)
}

func ObserveSkippedTrigger() {
	triggerEventsSkipped.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	ReportsGenerated     int64
	CorrelationRuns      int64
	CorrelationsUpserted int64
	CorrelationsFlagged  int64
	CorrelationFailures  int64
	NotFoundLookups      int64
	TriggerEventsSkipped int64
}

func Read() Snapshot {
	return Snapshot{
		ReportsGenerated:     reportsGenerated.Load(),
		CorrelationRuns:      correlationRuns.Load(),
		CorrelationsUpserted: correlationsUpserted.Load(),
		CorrelationsFlagged:  correlationsFlagged.Load(),
		CorrelationFailures:  correlationFailures.Load(),
		NotFoundLookups:      notFoundLookups.Load(),
		TriggerEventsSkipped: triggerEventsSkipped.Load(),
	}
}

func Handler(w http.ResponseWriter, _ *http.Request) {
	WritePrometheus(w)
}

func WritePrometheus(w http.ResponseWriter) {
	s := Read()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeCounter(w, "nourish_correlation_reports_generated_total", "Number of correlation reports generated.", s.ReportsGenerated)
	writeCounter(w, "nourish_correlation_runs_total", "Number of event correlator runs.", s.CorrelationRuns)
	writeCounter(w, "nourish_correlation_rows_upserted_total", "Number of symptom-meal correlation rows created or updated.", s.CorrelationsUpserted)
	writeCounter(w, "nourish_correlation_rows_flagged_total", "Number of upserted correlation rows flagged for review.", s.CorrelationsFlagged)
	writeCounter(w, "nourish_correlation_run_failures_total", "Number of event correlator runs that failed to persist.", s.CorrelationFailures)
	writeCounter(w, "nourish_correlation_not_found_total", "Number of lookups for unknown patients or symptom events.", s.NotFoundLookups)
	writeCounter(w, "nourish_correlation_trigger_skipped_total", "Number of symptom trigger events skipped as duplicates.", s.TriggerEventsSkipped)
}

func writeCounter(w http.ResponseWriter, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}
