package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"evetl/internal/metrics"
)

// readCounterValue reads the current value of a Counter.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

// readSummaryCountSum reads sample count and sum from a SummaryVec.
func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	return m.GetSummary().GetSampleCount(), m.GetSummary().GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL returns error", jobName: "evetl", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "evetl"},
		{name: "explicit job name is preserved", jobName: "nightly", gatewayURL: "http://pushgateway:9091", wantJobName: "nightly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewBackend() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend() error = %v", err)
			}
			if b.jobName != tt.wantJobName {
				t.Errorf("jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
		})
	}
}

func TestIncCounterAndObserve(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("evetl", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter("etl_step_total", 1, metrics.Labels{"job": "evetl", "step": "filter", "status": "success"})
	b.IncCounter("etl_records_total", 25000, metrics.Labels{"kind": metrics.KindEligible})
	b.IncCounter("etl_records_total", 5, metrics.Labels{"kind": metrics.KindEligible})
	b.IncCounter("etl_batches_total", 3, nil)
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})
	b.ObserveHistogram("etl_step_duration_seconds", 1.5, metrics.Labels{"step": "filter", "status": "success"})
	b.ObserveHistogram("other", 9, metrics.Labels{"step": "filter", "status": "success"})

	if got := readCounterValue(t, b.stepCounter.WithLabelValues("filter", "success")); got != 1 {
		t.Errorf("step counter = %v, want 1", got)
	}
	if got := readCounterValue(t, b.recordCounter.WithLabelValues(metrics.KindEligible)); got != 25005 {
		t.Errorf("record counter = %v, want 25005", got)
	}
	if got := readCounterValue(t, b.batchCounter); got != 3 {
		t.Errorf("batch counter = %v, want 3", got)
	}

	n, sum := readSummaryCountSum(t, b.stepDuration, "filter", "success")
	if n != 1 || sum != 1.5 {
		t.Errorf("summary count/sum = %d/%v, want 1/1.5", n, sum)
	}
}

func TestZeroBackendIsSafe(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter("etl_step_total", 1, metrics.Labels{"step": "s", "status": "ok"})
	b.IncCounter("etl_records_total", 1, metrics.Labels{"kind": "processed"})
	b.IncCounter("etl_batches_total", 1, nil)
	b.ObserveHistogram("etl_step_duration_seconds", 1, nil)
}

func TestFlush_PushesToGateway(t *testing.T) {
	t.Parallel()

	type pushed struct {
		method, path, body string
	}
	reqs := make(chan pushed, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs <- pushed{r.Method, r.URL.Path, string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("evetl", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.Grouping("run_id", "01J9ZQ3C7N1W")
	b.IncCounter("etl_records_total", 7, metrics.Labels{"kind": metrics.KindProcessed})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	got := <-reqs
	if got.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", got.method)
	}
	if !strings.HasPrefix(got.path, "/metrics/job/evetl") || !strings.Contains(got.path, "/run_id/01J9ZQ3C7N1W") {
		t.Errorf("path = %q, want job and run_id grouping", got.path)
	}
	if got.body == "" {
		t.Errorf("push body is empty")
	}
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("evetl", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	if err := b.Flush(); err == nil || !strings.Contains(err.Error(), "prompush: push") {
		t.Fatalf("Flush() error = %v, want prompush: push error", err)
	}
}
