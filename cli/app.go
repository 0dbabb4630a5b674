// Application wiring for CLI commands.
//
// Information Hiding:
// - Construction order of stores, vaults and the dispatcher hidden
// - Settings and flag overrides merged in one place

package cli

import (
	"fmt"
	"os"

	"github.com/richinex/vaultbridge/commands"
	"github.com/richinex/vaultbridge/config"
	"github.com/richinex/vaultbridge/dispatch"
	"github.com/richinex/vaultbridge/logging"
	"github.com/richinex/vaultbridge/protect"
	"github.com/richinex/vaultbridge/storage"
	"github.com/richinex/vaultbridge/vault"
	"github.com/richinex/vaultbridge/vault/bitwarden"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Trigger schemes of the built-in vaults.
const (
	LocalScheme     = "vaultbridge"
	BitwardenScheme = "bitwarden"
)

// HelperCommand is the CLI subcommand that runs the helper side.
const HelperCommand = "helper"

// Options holds CLI flag overrides.
type Options struct {
	DBPath  string
	Verbose bool
	Debug   bool
}

// App holds the wired components for one CLI invocation.
type App struct {
	Settings   config.Settings
	Logger     zerolog.Logger
	Store      *storage.SqliteStorage
	Vaults     *vault.Registry
	Commands   *commands.Registry
	Controller *dispatch.Controller
	Bitwarden  *bitwarden.Client
}

// Open loads settings, opens the local vault and wires the dispatcher.
func Open(opts Options) (*App, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		settings.Store.DBPath = opts.DBPath
	}
	if opts.Debug {
		settings.Dispatch.Debug = true
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(settings.Log.Level)
	logCfg.Pretty = settings.Log.Pretty
	if opts.Verbose {
		logCfg.Level = logging.DebugLevel
	}
	logger := logging.New(logCfg)

	store, err := storage.OpenSqlite(settings.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	app := &App{
		Settings: settings,
		Logger:   logger,
		Store:    store,
		Vaults:   vault.NewRegistry(),
	}
	if err := app.wire(); err != nil {
		store.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire() error {
	if err := a.Vaults.Register(LocalScheme, a.Store); err != nil {
		return err
	}

	bw := a.Settings.Bitwarden
	a.Bitwarden = bitwarden.NewClient(bw.URL,
		bitwarden.WithRetries(bw.Retries),
		bitwarden.WithLogger(a.Logger.With().Str("component", "bitwarden").Logger()),
	)
	if bw.Enabled {
		if err := a.Vaults.Register(BitwardenScheme, a.Bitwarden); err != nil {
			return err
		}
	}

	cmdConfig := commands.Config{
		TimeoutSecs: a.Settings.Dispatch.TimeoutSecs,
		Debug:       a.Settings.Dispatch.Debug,
		StateDir:    a.Settings.Store.StateDir,
		Fs:          afero.NewOsFs(),
	}
	registry, err := commands.WithDefaults(cmdConfig)
	if err != nil {
		return err
	}
	a.Commands = registry

	helper, err := a.newHelper()
	if err != nil {
		return err
	}

	a.Controller = dispatch.New(dispatch.Config{
		Registry:    registry,
		Executor:    commands.NewExecutor(cmdConfig),
		Helper:      helper,
		Reporter:    dispatch.HostReporter{Logger: a.Logger},
		History:     a.Store,
		Logger:      a.Logger.With().Str("component", "dispatch").Logger(),
		IncludeTOTP: a.Settings.Dispatch.IncludeTOTP,
	})
	return nil
}

func (a *App) newHelper() (*dispatch.Helper, error) {
	protector, err := protect.New(a.Settings.Dispatch.Protector, a.Settings.Dispatch.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load protector: %w", err)
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return &dispatch.Helper{
		Fs:         afero.NewOsFs(),
		Protector:  protector,
		Launcher:   dispatch.ExecLauncher{Terminal: a.Settings.Dispatch.Terminal},
		Executable: exe,
		Prefix:     []string{HelperCommand},
		Logger:     a.Logger.With().Str("component", "helper").Logger(),
	}, nil
}

// Close releases the local vault.
func (a *App) Close() error {
	return a.Store.Close()
}
