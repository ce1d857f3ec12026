package tsmd

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSupervisorRunsModules(t *testing.T) {
	supervisor := Supervisor{Logger: NewLogger(LogConfig{Level: "error"})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 1)
	modules := []ModuleRunner{
		{
			Name: "test",
			Run: func(ctx context.Context) error {
				started <- struct{}{}
				<-ctx.Done()
				return nil
			},
		},
	}

	go func() {
		<-started
		cancel()
	}()

	if err := supervisor.Run(ctx, modules); err != nil {
		t.Fatalf("supervisor run: %v", err)
	}
}

func TestSupervisorPropagatesErrorsAndStopsOthers(t *testing.T) {
	supervisor := Supervisor{Logger: NewLogger(LogConfig{Level: "error"})}

	stopped := make(chan struct{})
	modules := []ModuleRunner{
		{
			Name: "fail",
			Run: func(ctx context.Context) error {
				return errors.New("boom")
			},
		},
		{
			Name: "long",
			Run: func(ctx context.Context) error {
				<-ctx.Done()
				close(stopped)
				return ctx.Err()
			},
		},
	}

	err := supervisor.Run(context.Background(), modules)
	if err == nil {
		t.Fatalf("expected error")
	}
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("expected other modules cancelled")
	}
}

func TestSupervisorNoModules(t *testing.T) {
	supervisor := Supervisor{}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := supervisor.Run(ctx, nil); err == nil {
		t.Fatalf("expected error")
	}
}
