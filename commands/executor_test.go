package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type funcCommand struct {
	BaseCommand
	run func(ctx context.Context) error
}

func (c *funcCommand) Metadata() Metadata { return Metadata{Name: "func"} }

func (c *funcCommand) NewArgs() interface{} { return &struct{}{} }

func (c *funcCommand) Execute(ctx context.Context, _ ExecContext, _ interface{}) error {
	return c.run(ctx)
}

func TestExecutorRecoversPanics(t *testing.T) {
	cmd := &funcCommand{run: func(context.Context) error { panic("boom") }}

	err := NewDefaultExecutor().Run(context.Background(), cmd, ExecContext{}, nil)
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if pe.Value != "boom" || len(pe.Stack) == 0 {
		t.Errorf("unexpected panic error: %+v", pe)
	}
}

func TestExecutorDebugLetsPanicsThrough(t *testing.T) {
	cmd := &funcCommand{run: func(context.Context) error { panic("boom") }}

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic to propagate in debug mode")
		}
	}()
	_ = NewExecutor(Config{Debug: true}).Run(context.Background(), cmd, ExecContext{}, nil)
}

func TestExecutorWrapsErrors(t *testing.T) {
	sentinel := errors.New("denied")
	cmd := &funcCommand{run: func(context.Context) error { return sentinel }}

	err := NewDefaultExecutor().Run(context.Background(), cmd, ExecContext{}, nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if !strings.Contains(err.Error(), "command 'func' failed") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestExecutorTimeout(t *testing.T) {
	cmd := &funcCommand{run: func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}}

	err := NewExecutor(Config{TimeoutSecs: 1}).Run(context.Background(), cmd, ExecContext{}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("unexpected message: %v", err)
	}
}
