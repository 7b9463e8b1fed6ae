package supabase

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without contacting Supabase while the gateway
// circuit is open.
var ErrCircuitOpen = errors.New("supabase: gateway circuit open")

// Retry controls retries of idempotent gateway reads. Writes are sent once:
// a PostgREST insert that timed out may still have committed.
type Retry struct {
	// Attempts is the total number of tries for GET and HEAD, first included.
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (r Retry) withDefaults() Retry {
	if r.Attempts <= 0 {
		r.Attempts = 3
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = 100 * time.Millisecond
	}
	if r.MaxDelay < r.BaseDelay {
		r.MaxDelay = 2 * time.Second
		if r.MaxDelay < r.BaseDelay {
			r.MaxDelay = r.BaseDelay
		}
	}
	return r
}

// delay is exponential in attempt with equal jitter.
func (r Retry) delay(attempt int) time.Duration {
	d := r.BaseDelay << (attempt - 1)
	if d <= 0 || d > r.MaxDelay {
		d = r.MaxDelay
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// CircuitState is the gateway breaker state. The numeric values are
// exported as the circuit state gauge.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker configures the gateway circuit breaker. Only transport errors and
// 5xx answers count as failures; 4xx answers (RLS denials, unique
// violations, missing rows) prove the gateway is up.
type Breaker struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// Cooldown is how long the circuit stays open before a single trial
	// request is let through.
	Cooldown time.Duration
	// OnStateChange is called with the breaker locked and must not call
	// back into the client.
	OnStateChange func(from, to CircuitState)
}

func (b Breaker) withDefaults() Breaker {
	if b.Threshold <= 0 {
		b.Threshold = 5
	}
	if b.Cooldown <= 0 {
		b.Cooldown = 30 * time.Second
	}
	return b
}

type circuit struct {
	mu       sync.Mutex
	cfg      Breaker
	state    CircuitState
	failures int
	openedAt time.Time
	trial    bool
	now      func() time.Time
}

func newCircuit(cfg Breaker) *circuit {
	return &circuit{cfg: cfg.withDefaults(), now: time.Now}
}

// allow admits a request. In the half-open state exactly one trial request
// is in flight at a time.
func (c *circuit) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitOpen:
		if c.now().Sub(c.openedAt) < c.cfg.Cooldown {
			return ErrCircuitOpen
		}
		c.setState(CircuitHalfOpen)
		c.trial = true
	case CircuitHalfOpen:
		if c.trial {
			return ErrCircuitOpen
		}
		c.trial = true
	}
	return nil
}

// record settles an admitted request.
func (c *circuit) record(healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trial = false
	if healthy {
		c.failures = 0
		if c.state != CircuitClosed {
			c.setState(CircuitClosed)
		}
		return
	}
	c.failures++
	if c.state == CircuitHalfOpen || c.failures >= c.cfg.Threshold {
		c.openedAt = c.now()
		if c.state != CircuitOpen {
			c.setState(CircuitOpen)
		}
	}
}

// release settles an admitted request that says nothing about gateway
// health, such as one cancelled by its caller.
func (c *circuit) release() {
	c.mu.Lock()
	c.trial = false
	c.mu.Unlock()
}

func (c *circuit) setState(to CircuitState) {
	from := c.state
	c.state = to
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(from, to)
	}
}

func (c *circuit) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// gatewayTransport runs every PostgREST and Storage request through the
// circuit and retries idempotent reads.
type gatewayTransport struct {
	base    *http.Client
	retry   Retry
	circuit *circuit
}

func newGatewayTransport(base *http.Client, retry Retry, breaker Breaker) *gatewayTransport {
	return &gatewayTransport{
		base:    base,
		retry:   retry.withDefaults(),
		circuit: newCircuit(breaker),
	}
}

func (t *gatewayTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	attempts := 1
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		attempts = t.retry.Attempts
	}

	for attempt := 1; ; attempt++ {
		if err := t.circuit.allow(); err != nil {
			return nil, err
		}

		resp, err := t.base.Do(req.Clone(req.Context()))
		if err != nil && req.Context().Err() != nil {
			t.circuit.release()
			return nil, err
		}
		t.circuit.record(!gatewayFailure(resp, err))

		if attempt >= attempts || !retryable(resp, err) {
			return resp, err
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		timer := time.NewTimer(t.retry.delay(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

func gatewayFailure(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError
}

// retryable reports outcomes worth another read. A plain 500 is usually a
// deterministic SQL error and is not retried.
func retryable(resp *http.Response, err error) bool {
	if err != nil {
		var netErr net.Error
		return errors.As(err, &netErr) && !errors.Is(err, context.Canceled)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func newPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}
}
