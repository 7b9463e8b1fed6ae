package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCircuitStateString(t *testing.T) {
	cases := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(99): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("String() = %s, want %s", got, want)
		}
	}
}

func TestCircuitSingleTrialWhenHalfOpen(t *testing.T) {
	var transitions []CircuitState
	c := newCircuit(Breaker{
		Threshold: 2,
		Cooldown:  time.Minute,
		OnStateChange: func(_, to CircuitState) {
			transitions = append(transitions, to)
		},
	})
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	c.record(false)
	if c.State() != CircuitClosed {
		t.Fatalf("one failure must not open the circuit")
	}
	c.record(false)
	if err := c.allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("allow() = %v, want ErrCircuitOpen", err)
	}

	now = now.Add(2 * time.Minute)
	if err := c.allow(); err != nil {
		t.Fatalf("trial request refused: %v", err)
	}
	if err := c.allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second concurrent trial admitted: %v", err)
	}
	c.record(false)
	if c.State() != CircuitOpen {
		t.Fatalf("failed trial must reopen, got %v", c.State())
	}

	now = now.Add(2 * time.Minute)
	if err := c.allow(); err != nil {
		t.Fatalf("trial request refused: %v", err)
	}
	c.record(true)
	if c.State() != CircuitClosed {
		t.Fatalf("successful trial must close, got %v", c.State())
	}

	want := []CircuitState{CircuitOpen, CircuitHalfOpen, CircuitOpen, CircuitHalfOpen, CircuitClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}

func TestCircuitReleaseFreesTrial(t *testing.T) {
	c := newCircuit(Breaker{Threshold: 1, Cooldown: time.Nanosecond})
	c.record(false)
	time.Sleep(time.Millisecond)
	if err := c.allow(); err != nil {
		t.Fatalf("trial: %v", err)
	}
	c.release()
	if err := c.allow(); err != nil {
		t.Fatalf("released trial should admit the next request: %v", err)
	}
}

func newTransportServer(t *testing.T, status int, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusForbidden, http.StatusNotFound, http.StatusBadRequest} {
		var hits int32
		server := newTransportServer(t, status, &hits)
		tr := newGatewayTransport(server.Client(), Retry{Attempts: 1}, Breaker{Threshold: 2, Cooldown: time.Minute})

		for i := 0; i < 5; i++ {
			req, _ := http.NewRequest(http.MethodPost, server.URL, nil)
			resp, err := tr.RoundTrip(req)
			if err != nil {
				t.Fatalf("status %d attempt %d: %v", status, i, err)
			}
			resp.Body.Close()
		}
		if tr.circuit.State() != CircuitClosed {
			t.Fatalf("status %d opened the circuit", status)
		}
		if atomic.LoadInt32(&hits) != 5 {
			t.Fatalf("status %d: expected 5 requests to reach the gateway, got %d", status, hits)
		}
	}
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	var hits int32
	server := newTransportServer(t, http.StatusInternalServerError, &hits)
	tr := newGatewayTransport(server.Client(), Retry{Attempts: 3, BaseDelay: time.Millisecond}, Breaker{Threshold: 2, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		resp, err := tr.RoundTrip(req)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if resp.StatusCode != http.StatusInternalServerError {
			t.Fatalf("expected the 500 to be handed back, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("a plain 500 must not be retried, got %d requests", hits)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	if _, err := tr.RoundTrip(req); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("RoundTrip() error = %v, want ErrCircuitOpen", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("open circuit must not reach the gateway, got %d requests", hits)
	}
}

func TestReadsRetriedWritesSentOnce(t *testing.T) {
	var hits int32
	server := newTransportServer(t, http.StatusServiceUnavailable, &hits)
	tr := newGatewayTransport(server.Client(), Retry{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, Breaker{Threshold: 100})

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp.Body.Close()
	if got := atomic.SwapInt32(&hits, 0); got != 3 {
		t.Fatalf("read attempts = %d, want 3", got)
	}

	req, _ = http.NewRequest(http.MethodPatch, server.URL, nil)
	resp, err = tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	resp.Body.Close()
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("write attempts = %d, want 1", got)
	}
}

func TestCancelledRequestIsNotAFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	tr := newGatewayTransport(server.Client(), Retry{}, Breaker{Threshold: 1, Cooldown: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatal("RoundTrip() should fail once the context is done")
	}
	if tr.circuit.State() != CircuitClosed {
		t.Fatalf("caller cancellation opened the circuit")
	}
}

func TestRetryDelayBounds(t *testing.T) {
	r := Retry{BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}.withDefaults()
	for attempt := 1; attempt <= 6; attempt++ {
		d := r.delay(attempt)
		if d < 5*time.Millisecond || d > 40*time.Millisecond {
			t.Fatalf("attempt %d: delay %v out of bounds", attempt, d)
		}
	}
}
