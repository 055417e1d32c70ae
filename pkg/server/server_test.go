package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LohithReddy3/ai-daily/internal/scheduler"
)

type fakeStore struct {
	pingErr error
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

type fakePipeline struct {
	err      error
	report   *scheduler.Report
	triggers int
}

func (f *fakePipeline) Trigger(context.Context) error {
	f.triggers++
	return f.err
}

func (f *fakePipeline) LastReport() *scheduler.Report { return f.report }

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	st := &fakeStore{}
	h := New(st, &fakePipeline{}, nil, 0).Handler()

	if rec := do(t, h, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	st.pingErr = errors.New("database is locked")
	if rec := do(t, h, http.MethodGet, "/health"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(&fakeStore{}, &fakePipeline{}, nil, 0).Handler()
	rec := do(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRunTrigger(t *testing.T) {
	p := &fakePipeline{}
	h := New(&fakeStore{}, p, nil, 0).Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/pipeline/run"); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if p.triggers != 1 {
		t.Fatalf("triggers = %d, want 1", p.triggers)
	}

	p.err = scheduler.ErrRunInProgress
	if rec := do(t, h, http.MethodPost, "/api/v1/pipeline/run"); rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/pipeline/run"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	p := &fakePipeline{}
	h := New(&fakeStore{}, p, nil, 0).Handler()

	if rec := do(t, h, http.MethodGet, "/api/v1/pipeline/status"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	p.report = &scheduler.Report{
		ID:     "run-1",
		Stages: []scheduler.StageReport{{Name: "ingest", Stats: map[string]int{"created": 2}}},
	}
	rec := do(t, h, http.MethodGet, "/api/v1/pipeline/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got scheduler.Report
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "run-1" || got.Stat("ingest", "created") != 2 {
		t.Fatalf("unexpected report: %+v", got)
	}
}
