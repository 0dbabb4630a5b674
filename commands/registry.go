// Package commands provides command management and registration.
//
// Information Hiding:
// - Command storage and lookup implementation hidden
// - Registration order kept for disconnect sequencing

package commands

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds commands in registration order.
// Names are matched case-insensitively.
type Registry struct {
	mu       sync.RWMutex
	commands []Command
	byName   map[string]Command
}

// NewRegistry creates a new empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Command),
	}
}

// Register adds a new command to the registry.
// Returns error if a command with the same name already exists.
func (r *Registry) Register(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := cmd.Metadata().Name
	key := strings.ToLower(name)
	if key == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("command '%s' already registered", name)
	}
	r.byName[key] = cmd
	r.commands = append(r.commands, cmd)
	return nil
}

// Get returns a command by name.
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, exists := r.byName[strings.ToLower(name)]
	return cmd, exists
}

// Lookup is Get returning ErrUnknownCommand on a miss.
func (r *Registry) Lookup(name string) (Command, error) {
	cmd, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return cmd, nil
}

// All returns the commands in registration order.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Description returns a formatted description of all commands, flagging
// the ones whose program is not installed.
func (r *Registry) Description() string {
	var descriptions []string
	for _, cmd := range r.All() {
		meta := cmd.Metadata()
		var params []string
		for _, p := range meta.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			params = append(params, fmt.Sprintf("  - %s (%s): %s [%s]",
				p.Name, p.ParamType, p.Description, required))
		}

		var flags []string
		if meta.RequireDisconnect {
			flags = append(flags, "exclusive")
		}
		if meta.RequireTerminal {
			flags = append(flags, "terminal")
		}
		if !cmd.CanExecute() {
			flags = append(flags, "not installed")
		}
		header := fmt.Sprintf("Command: %s", meta.Name)
		if len(flags) > 0 {
			header += " (" + strings.Join(flags, ", ") + ")"
		}

		descriptions = append(descriptions, fmt.Sprintf(
			"%s\nDescription: %s\nParameters:\n%s",
			header, meta.Description, strings.Join(params, "\n")))
	}

	return strings.Join(descriptions, "\n\n")
}

// WithDefaults creates a registry with the built-in commands.
// Returns error if any command registration fails.
func WithDefaults(config Config) (*Registry, error) {
	registry := NewRegistry()

	cmds := []Command{
		NewPrintCommand(),
		NewRunCommand(),
		NewShellCommand(),
		NewRDPCommand(config.StateDir),
		NewOpenConnectCommand(config.Fs, config.StateDir),
	}

	for _, c := range cmds {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register default commands: %w", err)
		}
	}

	return registry, nil
}
