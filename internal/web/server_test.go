package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dnswlt/apicsync/internal/provider"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
)

// fakeSyncer blocks in Read until release is closed.
type fakeSyncer struct {
	id      string
	calls   atomic.Int32
	release chan struct{}
	status  *provider.Status
}

func (f *fakeSyncer) ID() string { return f.id }

func (f *fakeSyncer) Read(ctx context.Context) error {
	f.calls.Add(1)
	select {
	case <-f.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (f *fakeSyncer) Status() *provider.Status { return f.status }

func newTestServer(t *testing.T, syncers ...Syncer) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "Test counter."})
	reg.MustRegister(c)
	c.Inc()
	s := NewServer(ServerOptions{Addr: "127.0.0.1:0", Gatherer: reg}, syncers, nil)
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth_OK(t *testing.T) {
	rr := do(t, newTestServer(t).Handler(), http.MethodGet, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Body.String(); got != "OK\n" {
		t.Fatalf("body = %q, want %q", got, "OK\n")
	}
}

func TestMetrics(t *testing.T) {
	rr := do(t, newTestServer(t).Handler(), http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "test_total 1") {
		t.Errorf("metrics output lacks test counter:\n%s", rr.Body.String())
	}
}

func TestSync(t *testing.T) {
	fs := &fakeSyncer{id: "prod", release: make(chan struct{})}
	s := newTestServer(t, fs)
	h := s.Handler()

	if rr := do(t, h, http.MethodPost, "/sync/unknown"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown provider: status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if rr := do(t, h, http.MethodGet, "/sync/prod"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
	if rr := do(t, h, http.MethodPost, "/sync/prod"); rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusAccepted)
	}
	if rr := do(t, h, http.MethodPost, "/sync/prod"); rr.Code != http.StatusConflict {
		t.Errorf("second sync: status = %d, want %d", rr.Code, http.StatusConflict)
	}
	close(fs.release)

	deadline := time.Now().Add(5 * time.Second)
	for {
		rr := do(t, h, http.MethodPost, "/sync/prod")
		if rr.Code == http.StatusAccepted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sync did not finish, last status %d", rr.Code)
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Close()
	if got := fs.calls.Load(); got != 2 {
		t.Errorf("Read called %d times, want 2", got)
	}
}

func TestStatus(t *testing.T) {
	fs := &fakeSyncer{
		id:      "prod",
		release: make(chan struct{}),
		status:  &provider.Status{RunID: "r1", Entities: 3},
	}
	rr := do(t, newTestServer(t, fs).Handler(), http.MethodGet, "/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var got map[string]providerStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	want := map[string]providerStatus{
		"prod": {LastRun: &provider.Status{RunID: "r1", Entities: 3}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestProviders(t *testing.T) {
	s := newTestServer(t, &fakeSyncer{id: "b"}, &fakeSyncer{id: "a"})
	if diff := cmp.Diff([]string{"a", "b"}, s.Providers()); diff != "" {
		t.Errorf("Providers() mismatch (-want +got):\n%s", diff)
	}
}
