// Program launcher command.
//
// Information Hiding:
// - Process start and environment assembly hidden
// - Detached vs waited execution hidden behind the wait flag

package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"

	ijson "github.com/richinex/vaultbridge/internal/json"
)

// RunCommand starts a program.
type RunCommand struct {
	BaseCommand
}

// NewRunCommand creates a run command.
func NewRunCommand() *RunCommand {
	return &RunCommand{}
}

// Metadata returns the command metadata.
func (c *RunCommand) Metadata() Metadata {
	return Metadata{
		Name:        "run",
		Description: "Start a program with arguments and extra environment variables",
		Parameters: []Parameter{
			{Name: "path", ParamType: "string", Description: "Program to start", Required: true},
			{Name: "args", ParamType: "array", Description: "Program arguments", Required: false},
			{Name: "env", ParamType: "object", Description: "Extra environment variables", Required: false},
			{Name: "dir", ParamType: "string", Description: "Working directory", Required: false},
			{Name: "wait", ParamType: "boolean", Description: "Wait for the program to exit", Required: false},
		},
	}
}

// RunArgs are the arguments of the run command.
type RunArgs struct {
	Path string            `json:"path"`
	Args []string          `json:"args"`
	Env  map[string]string `json:"env"`
	Dir  string            `json:"dir"`
	Wait ijson.Bool        `json:"wait"`
}

// NewArgs returns a new argument value.
func (c *RunCommand) NewArgs() interface{} {
	return &RunArgs{}
}

// Execute starts the program.
func (c *RunCommand) Execute(ctx context.Context, ec ExecContext, args interface{}) error {
	a, err := argsAs[RunArgs]("run", args)
	if err != nil {
		return err
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	var cmd *exec.Cmd
	if a.Wait {
		cmd = exec.CommandContext(ctx, a.Path, a.Args...)
	} else {
		cmd = exec.Command(a.Path, a.Args...)
	}
	cmd.Dir = a.Dir
	cmd.Env = mergeEnv(os.Environ(), a.Env)
	cmd.Stdin = ec.Stdin
	cmd.Stdout = ec.stdout()
	cmd.Stderr = ec.stderr()

	if !a.Wait {
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start %s: %w", a.Path, err)
		}
		return cmd.Process.Release()
	}

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("%s exited with code %d", a.Path, exitErr.ExitCode())
		}
		return fmt.Errorf("failed to run %s: %w", a.Path, err)
	}
	return nil
}

// mergeEnv appends extra variables in a stable order.
func mergeEnv(base []string, extra map[string]string) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(extra))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
