package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hopper/internal/ledger"
	"hopper/internal/logging"
	"hopper/internal/metrics"
	"hopper/internal/scheduler"
)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(5, "")
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestHandlerReflectsLedger(t *testing.T) {
	l := newLedger(t)
	_ = l.Record(ledger.Entry{File: "a.txt", Outcome: ledger.Valid})
	_ = l.Record(ledger.Entry{File: "b.png", Outcome: ledger.Invalid, Reason: "extension error"})
	l.AddProcessed(2)
	l.SetInFlight(3)

	c := metrics.New(l)
	c.ObserveBatch(scheduler.BatchReport{Files: 2, Duration: 20 * time.Millisecond})
	body := scrape(t, c.Handler())

	for _, want := range []string{
		"hopper_files_processed_total 2",
		"hopper_files_valid_total 1",
		"hopper_files_failed_total 1",
		"hopper_files_in_flight 3",
		"hopper_history_entries 2",
		"hopper_batch_files_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestObserveBatchIgnoresEmptyPolls(t *testing.T) {
	c := metrics.New(newLedger(t))
	c.ObserveBatch(scheduler.BatchReport{})
	if body := scrape(t, c.Handler()); !strings.Contains(body, "hopper_batch_files_count 0") {
		t.Fatalf("expected no observations:\n%s", body)
	}
}

func TestListenServesMetrics(t *testing.T) {
	c := metrics.New(newLedger(t))
	srv, err := c.Listen("127.0.0.1:0", logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hopper_files_processed_total") {
		t.Fatalf("unexpected body %s", data)
	}
}
