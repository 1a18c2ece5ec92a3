package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_ObserveRequest(t *testing.T) {
	c := NewCollector("appointments")
	c.ObserveRequest(http.MethodGet, "/api/appointments", http.StatusOK, 20*time.Millisecond)
	c.ObserveRequest(http.MethodGet, "/api/appointments", http.StatusOK, 40*time.Millisecond)
	c.ObserveRequest(http.MethodPost, "/api/appointments", http.StatusConflict, time.Millisecond)

	if got := testutil.ToFloat64(c.RequestsTotal.WithLabelValues("GET", "/api/appointments", "200")); got != 2 {
		t.Errorf("expected 2 GET requests, got %v", got)
	}
	if got := testutil.ToFloat64(c.RequestsTotal.WithLabelValues("POST", "/api/appointments", "409")); got != 1 {
		t.Errorf("expected 1 conflicting POST, got %v", got)
	}
}

func TestCollector_RecordOperation(t *testing.T) {
	c := NewCollector("appointments")
	c.RecordOperation("create_appointment", "ok")
	c.RecordOperation("create_appointment", "conflict")
	c.RecordOperation("create_appointment", "conflict")

	if got := testutil.ToFloat64(c.OperationsTotal.WithLabelValues("create_appointment", "conflict")); got != 2 {
		t.Errorf("expected 2 conflicts, got %v", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.RecordOperation("cancel_appointment", "ok")
	c.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("appointments")
	c.RecordOperation("delete_doctor", "not_found")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	want := `appointments_scheduling_operations_total{operation="delete_doctor",outcome="not_found"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("exposition missing %q", want)
	}
}

func TestNewCollector_Independent(t *testing.T) {
	a := NewCollector("appointments")
	b := NewCollector("appointments")
	a.RecordOperation("x", "ok")
	if got := testutil.ToFloat64(b.OperationsTotal.WithLabelValues("x", "ok")); got != 0 {
		t.Errorf("collectors should not share state, got %v", got)
	}
}
