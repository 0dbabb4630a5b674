// Package main provides the vaultbridge CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/richinex/vaultbridge/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	dbPath  string
	verbose bool
	debug   bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "vaultbridge",
		Short: "Launch connections from password vault records",
		Long: `Turn vault records into actions.

A record field of the form "<command>:<json template>" becomes an action.
Placeholders such as {Username} or {Password@<record id>} in the template
are filled from the vault when the action runs.

Records are linked by URIs of the form "<scheme>:<record id>"; copying such
a link while "watch" is running offers the record's actions.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Local vault database path (default from VAULTBRIDGE_DB)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Let command panics propagate")

	// Add commands
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(actionsCmd())
	rootCmd.AddCommand(dispatchCmd())
	rootCmd.AddCommand(helperCmd())
	rootCmd.AddCommand(commandsCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(linkCmd())
	rootCmd.AddCommand(bitwardenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		DBPath:  dbPath,
		Verbose: verbose,
		Debug:   debug,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the clipboard for record links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return cli.Watch(ctx, options())
		},
	}
}

func actionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions [uri]",
		Short: "List the actions of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Actions(context.Background(), args[0], options())
		},
	}
}

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch [uri] [action]",
		Short: "Run a record action, selected by number or field name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return cli.Dispatch(ctx, args[0], args[1], options())
		},
	}
}

func helperCmd() *cobra.Command {
	return &cobra.Command{
		Use:    cli.HelperCommand + " [verb] [executable] [command] [file] [salt]",
		Short:  "Run a terminal command for a host process",
		Hidden: true,
		Args:   cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Helper(context.Background(), args, options())
		},
	}
}

func commandsCmd() *cobra.Command {
	var verboseCommands bool

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List available commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListCommands(verboseCommands)
		},
	}

	cmd.Flags().BoolVarP(&verboseCommands, "verbose", "V", false, "Show command parameters")

	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import records from a YAML file into the local vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Import(context.Background(), args[0], options())
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local vault over the bw serve API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return cli.Serve(ctx, addr, options())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8087", "Listen address")

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent dispatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.History(context.Background(), limit, options())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")

	return cmd
}

func linkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link [uri]",
		Short: "Add the record's own link to its URIs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Link(context.Background(), args[0], options())
		},
	}
}

func bitwardenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bw",
		Short: "Manage the bw serve session",
	}

	sub := []struct {
		use   string
		short string
		run   func(context.Context, cli.Options) error
	}{
		{"status", "Show session status", cli.BitwardenStatus},
		{"login", "Unlock the vault", cli.BitwardenLogin},
		{"logout", "Lock the vault", cli.BitwardenLogout},
		{"sync", "Sync the vault", cli.BitwardenSync},
	}
	for _, s := range sub {
		run := s.run
		cmd.AddCommand(&cobra.Command{
			Use:   s.use,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(context.Background(), options())
			},
		})
	}

	return cmd
}
