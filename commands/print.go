package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// PrintCommand writes text to the command's output.
// Used to preview what a template expands to.
type PrintCommand struct {
	BaseCommand
}

// NewPrintCommand creates a print command.
func NewPrintCommand() *PrintCommand {
	return &PrintCommand{}
}

// Metadata returns the command metadata.
func (c *PrintCommand) Metadata() Metadata {
	return Metadata{
		Name:        "print",
		Description: "Print text, or the given values one per line",
		Parameters: []Parameter{
			{Name: "text", ParamType: "string", Description: "Text to print", Required: false},
			{Name: "values", ParamType: "object", Description: "Named values to print", Required: false},
		},
	}
}

// PrintArgs are the arguments of the print command.
type PrintArgs struct {
	Text   string            `json:"text"`
	Values map[string]string `json:"values"`
}

// NewArgs returns a new argument value.
func (c *PrintCommand) NewArgs() interface{} {
	return &PrintArgs{}
}

// Execute prints the arguments.
func (c *PrintCommand) Execute(ctx context.Context, ec ExecContext, args interface{}) error {
	a, err := argsAs[PrintArgs]("print", args)
	if err != nil {
		return err
	}

	out := ec.stdout()
	if a.Text != "" {
		if _, err := fmt.Fprintln(out, a.Text); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(a.Values))
	for k := range a.Values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return strings.ToLower(keys[i]) < strings.ToLower(keys[j]) })
	for _, k := range keys {
		if _, err := fmt.Fprintf(out, "%s=%s\n", k, a.Values[k]); err != nil {
			return err
		}
	}
	return nil
}
