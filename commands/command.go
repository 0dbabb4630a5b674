// Package commands provides the actions a vault field can dispatch.
//
// Information Hiding:
// - Command execution details hidden behind interface
// - Argument shapes owned by each implementation via NewArgs
// - Registry implementation details hidden from consumers
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
)

// ErrUnknownCommand is returned when a name is not registered.
var ErrUnknownCommand = errors.New("unknown command")

// Parameter describes one argument property of a command.
type Parameter struct {
	Name        string `json:"name"`
	ParamType   string `json:"param_type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Metadata describes what a command does and how it must be run.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`

	// RequireDisconnect asks every other command to release its exclusive
	// resources before this one runs.
	RequireDisconnect bool `json:"require_disconnect"`

	// RequireTerminal runs the command in a separate helper process.
	RequireTerminal bool `json:"require_terminal"`
}

// String returns a string representation of the metadata.
func (m Metadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// ExecContext carries where a command is running.
type ExecContext struct {
	// Terminal is true inside the helper process.
	Terminal bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// HostContext returns the context of the main process.
func HostContext() ExecContext {
	return ExecContext{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// TerminalContext returns the context of the helper process.
func TerminalContext() ExecContext {
	ec := HostContext()
	ec.Terminal = true
	return ec
}

func (ec ExecContext) stdout() io.Writer {
	if ec.Stdout == nil {
		return io.Discard
	}
	return ec.Stdout
}

func (ec ExecContext) stderr() io.Writer {
	if ec.Stderr == nil {
		return io.Discard
	}
	return ec.Stderr
}

// Command is the interface that all commands must implement.
type Command interface {
	// Metadata returns command metadata (name, description, flags).
	Metadata() Metadata

	// NewArgs returns a pointer to a zero argument value to decode into.
	NewArgs() interface{}

	// CanExecute reports whether the command is usable on this machine.
	CanExecute() bool

	// Disconnect releases any exclusive resource the command holds.
	// Returns false if the resource could not be released.
	Disconnect(ctx context.Context) bool

	// Execute runs the command with arguments produced by NewArgs.
	Execute(ctx context.Context, ec ExecContext, args interface{}) error
}

// BaseCommand provides defaults for CanExecute and Disconnect.
type BaseCommand struct{}

// CanExecute reports true.
func (BaseCommand) CanExecute() bool {
	return true
}

// Disconnect holds nothing and always succeeds.
func (BaseCommand) Disconnect(ctx context.Context) bool {
	return true
}

// Config holds command execution configuration.
// The zero value is safe: no timeout and panics are recovered.
type Config struct {
	TimeoutSecs uint64
	Debug       bool // Let panics propagate instead of converting them
	StateDir    string
	Fs          afero.Fs // Session state files; nil is the OS filesystem
}

// Timeout returns the configured timeout, zero meaning none.
func (c *Config) Timeout() time.Duration {
	if c == nil || c.TimeoutSecs == 0 {
		return 0
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// argsAs converts the value produced by NewArgs back to its concrete type.
func argsAs[T any](name string, args interface{}) (*T, error) {
	a, ok := args.(*T)
	if !ok || a == nil {
		return nil, fmt.Errorf("%s: unexpected argument type %T", name, args)
	}
	return a, nil
}
