// Command execution for CLI commands.
//
// Information Hiding:
// - Record lookup and action selection hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/richinex/vaultbridge/commands"
	"github.com/richinex/vaultbridge/dispatch"
	"github.com/richinex/vaultbridge/model"
	"github.com/richinex/vaultbridge/server"
	"github.com/richinex/vaultbridge/trigger"
	"github.com/richinex/vaultbridge/vault"
	"golang.org/x/term"
)

// fetch resolves a trigger URI to its record.
func (a *App) fetch(ctx context.Context, uri string) (trigger.Link, *model.Record, error) {
	link, ok := trigger.ParseURI(uri, a.Vaults)
	if !ok {
		return trigger.Link{}, nil, fmt.Errorf("not a record link: %q (schemes: %s)", uri, strings.Join(a.Vaults.Schemes(), ", "))
	}
	rec, err := link.Vault.GetItem(ctx, link.RecordID, a.Settings.Dispatch.IncludeTOTP)
	if err != nil {
		return link, nil, fmt.Errorf("failed to fetch record: %w", err)
	}
	if rec == nil {
		return link, nil, fmt.Errorf("record not found: %s", link)
	}
	return link, rec, nil
}

// Actions prints the actions offered for a record link.
func Actions(ctx context.Context, uri string, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	_, rec, err := app.fetch(ctx, uri)
	if err != nil {
		return err
	}
	printActions(os.Stdout, rec, trigger.Actions(rec, app.Commands))
	return nil
}

func printActions(w io.Writer, rec *model.Record, actions []trigger.Action) {
	fmt.Fprintf(w, "%s (%s)\n", rec.Name, rec.ID)
	if len(actions) == 0 {
		fmt.Fprintln(w, "  no actions")
		return
	}
	for i, a := range actions {
		fmt.Fprintf(w, "  %d. %s [%s]\n", i+1, a.Field, a.Command.Metadata().Name)
	}
}

// Dispatch runs an action of the linked record. choice is the action's
// number as printed by Actions, or its field name.
func Dispatch(ctx context.Context, uri, choice string, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	link, rec, err := app.fetch(ctx, uri)
	if err != nil {
		return err
	}
	action, err := selectAction(trigger.Actions(rec, app.Commands), choice)
	if err != nil {
		return err
	}
	return app.dispatch(ctx, link, rec, action)
}

// selectAction picks an action by number or by field name. A name shared
// by several actions must be selected by number.
func selectAction(actions []trigger.Action, choice string) (trigger.Action, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(choice)); err == nil {
		if n < 1 || n > len(actions) {
			return trigger.Action{}, fmt.Errorf("no action %d (record has %d)", n, len(actions))
		}
		return actions[n-1], nil
	}

	var matches []trigger.Action
	for _, a := range actions {
		if strings.EqualFold(a.Field, choice) {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 0:
		return trigger.Action{}, fmt.Errorf("no action named %q", choice)
	case 1:
		return matches[0], nil
	}
	return trigger.Action{}, fmt.Errorf("%d actions are named %q, select one by number", len(matches), choice)
}

func (a *App) dispatch(ctx context.Context, link trigger.Link, rec *model.Record, action trigger.Action) error {
	req, err := dispatch.NewRequest(link.Vault, rec, action.Index)
	if err != nil {
		return err
	}
	out := a.Controller.Dispatch(ctx, commands.HostContext(), req)
	a.Logger.Debug().
		Str("state", out.State.String()).
		Int("exit_code", out.ExitCode).
		Dur("duration", out.Duration).
		Msg("dispatch finished")

	if out.State == dispatch.StateAborted {
		return fmt.Errorf("dispatch aborted: %w", out.Err)
	}
	return nil
}

// Watch polls the clipboard for record links and offers their actions.
func Watch(ctx context.Context, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	clip := trigger.SystemClipboard{}
	if !clip.Available() {
		return errors.New("clipboard is not available on this system")
	}

	in := bufio.NewReader(os.Stdin)
	handler := func(ctx context.Context, link trigger.Link) {
		rec, err := link.Vault.GetItem(ctx, link.RecordID, app.Settings.Dispatch.IncludeTOTP)
		if err != nil || rec == nil {
			app.Logger.Warn().Err(err).Str("link", link.String()).Msg("record not available")
			return
		}
		actions := trigger.Actions(rec, app.Commands)
		printActions(os.Stdout, rec, actions)
		if len(actions) == 0 {
			return
		}

		fmt.Printf("Select action [1-%d] (Enter to skip): ", len(actions))
		line, _ := in.ReadString('\n')
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(actions) {
			return
		}
		if err := app.dispatch(ctx, link, rec, actions[n-1]); err != nil {
			app.Logger.Info().Err(err).Msg("action not run")
		}
	}

	fmt.Printf("Watching clipboard for %s links. Press Ctrl+C to stop.\n", strings.Join(app.Vaults.Schemes(), ", "))
	w := trigger.NewWatcher(clip, app.Vaults, app.Settings.Trigger.PollInterval, handler, app.Logger)
	return w.Run(ctx)
}

// Helper runs a terminal command on behalf of a host process.
func Helper(ctx context.Context, args []string, opts Options) error {
	req, err := dispatch.ParseHelperArgs(args)
	if err != nil {
		return err
	}
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Controller.RunHelper(ctx, commands.TerminalContext(), req)
}

// ListCommands lists the registered commands.
func ListCommands(verbose bool) error {
	registry, err := commands.WithDefaults(commands.Config{})
	if err != nil {
		return err
	}

	if verbose {
		fmt.Println(registry.Description())
		return nil
	}

	fmt.Println("Available commands:")
	fmt.Println()
	for _, cmd := range registry.All() {
		meta := cmd.Metadata()
		status := ""
		if !cmd.CanExecute() {
			status = " (not installed)"
		}
		fmt.Printf("  %s%s\n", meta.Name, status)
		fmt.Printf("    %s\n", meta.Description)
	}
	return nil
}

// Import loads records from a YAML file into the local vault.
func Import(ctx context.Context, path string, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	ids, err := app.Store.ImportYAML(ctx, f)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(trigger.URI(LocalScheme, id))
	}
	fmt.Printf("Imported %d records\n", len(ids))
	return nil
}

// Serve exposes the local vault over HTTP until ctx is cancelled.
func Serve(ctx context.Context, addr string, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Logger.Info().Str("addr", addr).Msg("serving local vault")
	return server.ListenAndServe(ctx, addr, server.New(app.Store, app.Logger))
}

// History prints recent dispatches.
func History(ctx context.Context, limit int, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	events, err := app.Store.RecentDispatches(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tVAULT\tRECORD\tCOMMAND\tSTATE\tDURATION\tERROR")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.StartedAt.Format(time.DateTime), ev.Vault, ev.RecordID, ev.Command,
			ev.State, ev.Duration.Round(time.Millisecond), ev.Error)
	}
	return tw.Flush()
}

// Link adds the record's own trigger URI to its URI list.
func Link(ctx context.Context, uri string, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	link, rec, err := app.fetch(ctx, uri)
	if err != nil {
		return err
	}
	session, ok := link.Vault.(vault.Session)
	if !ok {
		return fmt.Errorf("vault %s cannot update URIs", link.Vault.Name())
	}

	uris := recordURIs(rec)
	own := link.String()
	for _, u := range uris {
		if strings.EqualFold(u, own) {
			fmt.Println("Already linked:", own)
			return nil
		}
	}
	if err := session.UpdateURIs(ctx, link.RecordID, append(uris, own)); err != nil {
		return err
	}
	fmt.Println("Linked:", own)
	return nil
}

// recordURIs returns the values of the URI, URI2, ... fields in order.
func recordURIs(rec *model.Record) []string {
	var uris []string
	for i := 1; ; i++ {
		name := "URI"
		if i > 1 {
			name += strconv.Itoa(i)
		}
		f, ok := rec.Field(name)
		if !ok {
			return uris
		}
		uris = append(uris, f.StringValue())
	}
}

// BitwardenStatus prints the `bw serve` session status.
func BitwardenStatus(ctx context.Context, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	status, err := app.Bitwarden.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Status:  %s\n", status.State)
	if status.UserEmail != "" {
		fmt.Printf("User:    %s\n", status.UserEmail)
	}
	if status.ServerURL != "" {
		fmt.Printf("Server:  %s\n", status.ServerURL)
	}
	if status.LastSync != "" {
		fmt.Printf("Synced:  %s\n", status.LastSync)
	}
	return nil
}

// BitwardenLogin unlocks the vault, prompting for the master password.
func BitwardenLogin(ctx context.Context, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	password, err := readPassword("Master password: ")
	if err != nil {
		return err
	}
	if err := app.Bitwarden.Login(ctx, password); err != nil {
		return err
	}
	fmt.Println("Vault unlocked")
	return nil
}

// BitwardenLogout locks the vault.
func BitwardenLogout(ctx context.Context, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Bitwarden.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Vault locked")
	return nil
}

// BitwardenSync pulls the latest vault data.
func BitwardenSync(ctx context.Context, opts Options) error {
	app, err := Open(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Bitwarden.Sync(ctx); err != nil {
		return err
	}
	fmt.Println("Sync complete")
	return nil
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(data), nil
}
