package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadinessAllHealthy(t *testing.T) {
	c := NewChecker()
	c.Register("providers", func(ctx context.Context) error { return nil })
	c.Register("config", func(ctx context.Context) error { return nil })

	st := c.Readiness(context.Background())
	if st.Status != "ready" {
		t.Errorf("status = %q, want ready", st.Status)
	}
	if len(st.Checks) != 2 {
		t.Errorf("checks = %d, want 2", len(st.Checks))
	}
	for name, result := range st.Checks {
		if result.Status != "ok" {
			t.Errorf("check %s = %+v, want ok", name, result)
		}
	}
}

func TestReadinessDegradesOnFailure(t *testing.T) {
	c := NewChecker()
	c.Register("providers", func(ctx context.Context) error { return nil })
	c.Register("tunnel", func(ctx context.Context) error {
		return errors.New("bridge unreachable")
	})

	st := c.Readiness(context.Background())
	if st.Status != "degraded" {
		t.Errorf("status = %q, want degraded", st.Status)
	}
	if st.Checks["tunnel"].Message != "bridge unreachable" {
		t.Errorf("tunnel check = %+v", st.Checks["tunnel"])
	}
	if st.Checks["providers"].Status != "ok" {
		t.Errorf("healthy check dragged down: %+v", st.Checks["providers"])
	}
}

func TestReadinessHandlerStatusCodes(t *testing.T) {
	c := NewChecker()
	failing := false
	c.Register("providers", func(ctx context.Context) error {
		if failing {
			return errors.New("no active provider")
		}
		return nil
	})

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}

	failing = true
	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d, want 503", rec.Code)
	}

	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Status != "degraded" {
		t.Errorf("body status = %q", st.Status)
	}
}

func TestLivenessIgnoresChecks(t *testing.T) {
	c := NewChecker()
	c.Register("broken", func(ctx context.Context) error {
		return errors.New("always failing")
	})

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest("GET", "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness status = %d, want 200", rec.Code)
	}
}
