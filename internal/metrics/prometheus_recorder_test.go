package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveRunDuration("restore", 150*time.Millisecond)
	pr.IncRunOutcome("restore", true)
	pr.AddItemOutcomes("restore", ItemApplied, 3)
	pr.AddItemOutcomes("restore", ItemFailed, 0)
	pr.IncCycle(CycleChanged)
	pr.IncCycle(CycleFetchFailed)
	pr.IncFetchFailure()
	pr.SetLastCycle(time.Unix(1700000000, 0))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
	body := scrape(t, reg)
	for _, want := range []string{
		`gsb_item_outcomes_total{direction="restore",outcome="applied"} 3`,
		`gsb_daemon_fetch_failures_total 1`,
		`gsb_daemon_last_cycle_timestamp_seconds 1.7e+09`,
		`gsb_run_outcomes_total{command="restore",result="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, `outcome="failed"`) {
		t.Fatalf("zero additions must not create a series")
	}
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncCycle(CycleUnchanged)
	pr.IncFetchFailure()
	pr.SetLastCycle(time.Now())
	if pr.Registry() != nil {
		t.Fatalf("nil recorder should have no registry")
	}
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncCycle(CycleChanged)

	if body := scrape(t, pr.Registry()); !strings.Contains(body, "gsb_daemon_cycles_total") {
		t.Fatalf("cycle counter missing from scrape:\n%s", body)
	}
}

func scrape(t *testing.T, reg *prom.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	return rec.Body.String()
}

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)
