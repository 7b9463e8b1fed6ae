package system

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bealive/bealive-api/pkg/logger"
)

type fakeService struct {
	name     string
	startErr error
	log      *[]string
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.log = append(*f.log, "start "+f.name)
	return nil
}

func (f *fakeService) Stop(context.Context) error {
	*f.log = append(*f.log, "stop "+f.name)
	return nil
}

func TestManagerOrder(t *testing.T) {
	var events []string
	m := NewManager(logger.Discard())
	for _, name := range []string{"a", "b"} {
		if err := m.Register(&fakeService{name: name, log: &events}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := m.Register(&fakeService{name: "a", log: &events}); err == nil {
		t.Fatal("duplicate names should be rejected")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := strings.Join(events, ","); got != "start a,start b,stop b,stop a" {
		t.Fatalf("events %s", got)
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var events []string
	m := NewManager(logger.Discard())
	_ = m.Register(&fakeService{name: "a", log: &events})
	_ = m.Register(&fakeService{name: "b", log: &events, startErr: errors.New("boom")})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if got := strings.Join(events, ","); got != "start a,stop a" {
		t.Fatalf("events %s", got)
	}
}

func TestCronServiceRunsJobs(t *testing.T) {
	svc := NewCronService(time.Second, logger.Discard())
	var runs atomic.Int32
	if err := svc.Add(Job{Name: "tick", Spec: "@every 1s", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Add(Job{Name: "bad", Spec: "not a spec", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("invalid spec should be rejected")
	}
	if len(svc.Jobs()) != 1 {
		t.Fatalf("jobs %d", len(svc.Jobs()))
	}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if runs.Load() == 0 {
		t.Fatal("job never ran")
	}
}
