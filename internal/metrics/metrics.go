package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	RunsTotal        atomic.Int64
	RunFailures      atomic.Int64
	AlertsCreated    atomic.Int64
	AlertsSuppressed atomic.Int64
	ItemFailures     atomic.Int64
	EmailsSent       atomic.Int64
	EmailsFailed     atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "alerts_runs_total %d\n", RunsTotal.Load())
	fmt.Fprintf(w, "alerts_run_failures_total %d\n", RunFailures.Load())
	fmt.Fprintf(w, "alerts_created_total %d\n", AlertsCreated.Load())
	fmt.Fprintf(w, "alerts_suppressed_total %d\n", AlertsSuppressed.Load())
	fmt.Fprintf(w, "alerts_item_failures_total %d\n", ItemFailures.Load())
	fmt.Fprintf(w, "alerts_emails_sent_total %d\n", EmailsSent.Load())
	fmt.Fprintf(w, "alerts_emails_failed_total %d\n", EmailsFailed.Load())
}
