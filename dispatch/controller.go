// Package dispatch turns a clicked action into a single command execution.
//
// Information Hiding:
// - Disconnect sequencing hidden behind Dispatch
// - Template expansion and argument binding internal to one dispatch
// - Helper process transfer (sealed file, salt) hidden behind Helper
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/richinex/vaultbridge/commands"
	ijson "github.com/richinex/vaultbridge/internal/json"
	"github.com/richinex/vaultbridge/model"
	"github.com/richinex/vaultbridge/placeholder"
	"github.com/richinex/vaultbridge/storage"
	"github.com/richinex/vaultbridge/vault"
	"github.com/rs/zerolog"
)

var (
	// ErrDisconnectRefused is returned when another command cannot release
	// its exclusive resource.
	ErrDisconnectRefused = errors.New("disconnect refused")

	// ErrBusy is returned when the same action is already running.
	ErrBusy = errors.New("action already running")
)

// Request identifies one clicked action.
type Request struct {
	Vault    vault.Vault
	RecordID string
	// Field names the record field holding the action, for logs.
	Field string
	// Index is the position of that field in the record. Field names need
	// not be unique, so the guard keys on it.
	Index    int
	Command  string
	Template string
	// Record is the already fetched triggering record, if any.
	Record *model.Record
}

// NewRequest builds a request from the action field at index in rec.
func NewRequest(v vault.Vault, rec *model.Record, index int) (Request, error) {
	if index < 0 || index >= len(rec.Fields) {
		return Request{}, fmt.Errorf("record %s has no field at index %d", rec.ID, index)
	}
	f := rec.Fields[index]
	action, ok := model.ParseAction(f.StringValue())
	if !ok {
		return Request{}, fmt.Errorf("field %q is not an action", f.Name)
	}
	return Request{
		Vault:    v,
		RecordID: rec.ID,
		Field:    f.Name,
		Index:    index,
		Command:  action.Command,
		Template: action.Template,
		Record:   rec,
	}, nil
}

func (r Request) key() string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%d/%s", r.Vault.Name(), r.RecordID, r.Index, r.Command))
}

// Outcome is the result of one dispatch.
type Outcome struct {
	State    State
	Err      error
	ExitCode int
	Duration time.Duration
}

// History receives every finished dispatch.
type History interface {
	RecordDispatch(ctx context.Context, ev storage.DispatchEvent) error
}

// Config holds the collaborators of a Controller.
type Config struct {
	Registry *commands.Registry
	Executor *commands.Executor

	// Helper runs terminal commands out of process. When nil they run
	// in-process.
	Helper *Helper

	// Reporter shows failures in host context; terminal context always
	// uses a ConsoleReporter.
	Reporter Reporter
	History  History
	Guard    *Guard
	Logger   zerolog.Logger

	IncludeTOTP bool
}

// Controller dispatches actions.
type Controller struct {
	registry    *commands.Registry
	executor    *commands.Executor
	helper      *Helper
	reporter    Reporter
	history     History
	guard       *Guard
	logger      zerolog.Logger
	includeTOTP bool
}

// New creates a controller.
func New(cfg Config) *Controller {
	c := &Controller{
		registry:    cfg.Registry,
		executor:    cfg.Executor,
		helper:      cfg.Helper,
		reporter:    cfg.Reporter,
		history:     cfg.History,
		guard:       cfg.Guard,
		logger:      cfg.Logger,
		includeTOTP: cfg.IncludeTOTP,
	}
	if c.registry == nil {
		c.registry = commands.NewRegistry()
	}
	if c.executor == nil {
		c.executor = commands.NewDefaultExecutor()
	}
	if c.reporter == nil {
		c.reporter = HostReporter{Logger: cfg.Logger}
	}
	if c.guard == nil {
		c.guard = NewGuard()
	}
	return c
}

// Guard returns the in-flight guard, for disabling running actions.
func (c *Controller) Guard() *Guard {
	return c.guard
}

// dispatchRun is the state of one dispatch.
type dispatchRun struct {
	req     Request
	ec      commands.ExecContext
	state   State
	started time.Time
	logger  zerolog.Logger
}

func (r *dispatchRun) enter(s State) {
	r.logger.Debug().Str("from", r.state.String()).Str("to", s.String()).Msg("dispatch state")
	r.state = s
}

// Dispatch runs one action to completion. Failures of the command body are
// reported and end in StateDone; a refused disconnect, an unknown command
// or a bad template end in StateAborted before any command runs.
func (c *Controller) Dispatch(ctx context.Context, ec commands.ExecContext, req Request) Outcome {
	run := &dispatchRun{
		req:     req,
		ec:      ec,
		state:   StateIdle,
		started: time.Now(),
		logger: c.logger.With().
			Str("vault", req.Vault.Name()).
			Str("record", req.RecordID).
			Str("command", req.Command).
			Logger(),
	}

	release, err := c.guard.Acquire(req.key())
	if err != nil {
		// Not recorded: the running dispatch will be.
		return Outcome{State: StateAborted, Err: err}
	}
	defer release()

	out := c.dispatch(ctx, run)
	out.Duration = time.Since(run.started)
	c.record(ctx, run, out)
	return out
}

func (c *Controller) dispatch(ctx context.Context, run *dispatchRun) Outcome {
	req := run.req

	cmd, err := c.registry.Lookup(req.Command)
	if err != nil {
		return c.abort(run, err)
	}
	meta := cmd.Metadata()

	if meta.RequireDisconnect {
		run.enter(StateResolvingRequiredDisconnects)
		if err := c.disconnectOthers(ctx, run, cmd); err != nil {
			return c.abort(run, err)
		}
	}

	run.enter(StateExpandingTemplate)
	expanded, err := c.expand(ctx, req)
	if err != nil {
		return c.abort(run, err)
	}

	run.enter(StateMaterializing)
	data, err := expanded.MarshalJSON()
	if err != nil {
		return c.abort(run, fmt.Errorf("encoding arguments: %w", err))
	}
	args := cmd.NewArgs()
	if err := ijson.DecodeInto(data, args); err != nil {
		return c.abort(run, err)
	}

	run.enter(StateInvoking)
	out := Outcome{State: StateDone}
	if meta.RequireTerminal && !run.ec.Terminal && c.helper != nil {
		code, err := c.helper.Invoke(ctx, meta.Name, args)
		out.ExitCode = code
		switch {
		case err != nil:
			out.Err = err
			c.report(run.ec, fmt.Sprintf("Could not start %s", meta.Name), err)
		case code != 0:
			run.logger.Warn().Int("exit_code", code).Msg("helper exited with non-zero status")
		}
	} else if err := c.executor.Run(ctx, cmd, run.ec, args); err != nil {
		out.Err = err
		c.report(run.ec, fmt.Sprintf("%s failed", meta.Name), err)
	}
	run.enter(StateDone)
	return out
}

// disconnectOthers asks every other command, in registration order, to
// release its resources. The first refusal stops the dispatch.
func (c *Controller) disconnectOthers(ctx context.Context, run *dispatchRun, target commands.Command) error {
	for _, other := range c.registry.All() {
		if other == target {
			continue
		}
		name := other.Metadata().Name
		if !other.Disconnect(ctx) {
			return fmt.Errorf("%w: %s", ErrDisconnectRefused, name)
		}
		run.logger.Debug().Str("other", name).Msg("disconnected")
	}
	return nil
}

func (c *Controller) expand(ctx context.Context, req Request) (*placeholder.Node, error) {
	doc, err := placeholder.Parse(req.Template)
	if err != nil {
		return nil, err
	}

	cache := vault.NewFetchCache(req.Vault, c.includeTOTP, c.logger)
	if req.Record != nil {
		cache.Seed(req.Record)
	}
	engine := placeholder.NewEngine(cache, c.logger)
	return engine.Expand(ctx, doc, req.RecordID, placeholder.Options{PopulateRoot: true})
}

func (c *Controller) abort(run *dispatchRun, err error) Outcome {
	run.logger.Info().Err(err).Str("state", run.state.String()).Msg("dispatch aborted")
	run.enter(StateAborted)
	// A refused disconnect is not shown to the user.
	if !errors.Is(err, ErrDisconnectRefused) {
		c.report(run.ec, "Cannot run "+run.req.Command, err)
	}
	return Outcome{State: StateAborted, Err: err}
}

func (c *Controller) report(ec commands.ExecContext, title string, err error) {
	if ec.Terminal {
		ConsoleReporter{}.Report(ec, title, err)
		return
	}
	c.reporter.Report(ec, title, err)
}

func (c *Controller) record(ctx context.Context, run *dispatchRun, out Outcome) {
	if c.history == nil {
		return
	}
	ev := storage.DispatchEvent{
		Vault:     run.req.Vault.Name(),
		RecordID:  run.req.RecordID,
		Command:   run.req.Command,
		State:     out.State.String(),
		ExitCode:  out.ExitCode,
		StartedAt: run.started,
		Duration:  out.Duration,
	}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	if err := c.history.RecordDispatch(ctx, ev); err != nil {
		run.logger.Warn().Err(err).Msg("failed to record dispatch")
	}
}

// RunHelper is the helper-process side of a terminal command: it opens the
// sealed arguments named by req and runs the command in ec.
func (c *Controller) RunHelper(ctx context.Context, ec commands.ExecContext, req HelperRequest) error {
	if c.helper == nil {
		return errors.New("helper transport is not configured")
	}
	if self, err := os.Executable(); err == nil && req.ExecutablePath != "" && req.ExecutablePath != self {
		c.logger.Debug().Str("expected", req.ExecutablePath).Str("actual", self).Msg("helper started from a different executable")
	}

	run := func() error {
		payload, err := c.helper.Receive(req)
		if err != nil {
			return err
		}
		cmd, err := c.registry.Lookup(req.Command)
		if err != nil {
			return err
		}
		args := cmd.NewArgs()
		if err := ijson.DecodeInto(payload, args); err != nil {
			return err
		}
		return c.executor.Run(ctx, cmd, ec, args)
	}

	if err := run(); err != nil {
		ConsoleReporter{}.Report(ec, req.Command+" failed", err)
		return err
	}
	return nil
}
