// Shell Script Command.
//
// Information Hiding:
// - Script parsing and interpretation hidden (mvdan.cc/sh)
// - Credential environment assembly hidden

package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ShellCommand runs a POSIX shell script with an in-process interpreter.
// Scripts usually prompt or stream output, so they run in the helper terminal.
type ShellCommand struct {
	BaseCommand
}

// NewShellCommand creates a shell command.
func NewShellCommand() *ShellCommand {
	return &ShellCommand{}
}

// Metadata returns the command metadata.
func (c *ShellCommand) Metadata() Metadata {
	return Metadata{
		Name:        "shell",
		Description: "Run a shell script; env values are exported to it",
		Parameters: []Parameter{
			{Name: "script", ParamType: "string", Description: "Script source", Required: true},
			{Name: "env", ParamType: "object", Description: "Variables exported to the script", Required: false},
			{Name: "dir", ParamType: "string", Description: "Working directory", Required: false},
		},
		RequireTerminal: true,
	}
}

// ShellArgs are the arguments of the shell command.
type ShellArgs struct {
	Script string            `json:"script"`
	Env    map[string]string `json:"env"`
	Dir    string            `json:"dir"`
}

// NewArgs returns a new argument value.
func (c *ShellCommand) NewArgs() interface{} {
	return &ShellArgs{}
}

// Execute interprets the script.
func (c *ShellCommand) Execute(ctx context.Context, ec ExecContext, args interface{}) error {
	a, err := argsAs[ShellArgs]("shell", args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(a.Script) == "" {
		return fmt.Errorf("script cannot be empty")
	}

	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(a.Script), "")
	if err != nil {
		return fmt.Errorf("invalid script: %w", err)
	}

	dir := a.Dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
	}

	runner, err := interp.New(
		interp.StdIO(ec.Stdin, ec.stdout(), ec.stderr()),
		interp.Env(expand.ListEnviron(mergeEnv(os.Environ(), a.Env)...)),
		interp.Dir(dir),
	)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, file); err != nil {
		return fmt.Errorf("script failed: %w", err)
	}
	return nil
}
