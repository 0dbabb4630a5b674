// Command Executor with panic isolation.
//
// Information Hiding:
// - Timeout handling hidden
// - Panic-to-error conversion hidden

package commands

import (
	"context"
	"fmt"
	"runtime/debug"
)

// PanicError is returned when a command body panics.
type PanicError struct {
	Command string
	Value   interface{}
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("command '%s' panicked: %v", e.Command, e.Value)
}

// Executor runs commands in-process.
type Executor struct {
	config Config
}

// NewExecutor creates a new executor with the given configuration.
func NewExecutor(config Config) *Executor {
	return &Executor{config: config}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return &Executor{}
}

// Run executes cmd once. Panics in the command body become a *PanicError
// unless the executor is in debug mode.
func (e *Executor) Run(ctx context.Context, cmd Command, ec ExecContext, args interface{}) (err error) {
	name := cmd.Metadata().Name

	if timeout := e.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if !e.config.Debug {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Command: name, Value: r, Stack: debug.Stack()}
			}
		}()
	}

	if err := cmd.Execute(ctx, ec, args); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("command '%s' timed out after %s: %w", name, e.config.Timeout(), err)
		}
		return fmt.Errorf("command '%s' failed: %w", name, err)
	}
	return nil
}
