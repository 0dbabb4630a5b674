package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"

	ijson "github.com/richinex/vaultbridge/internal/json"
	"github.com/richinex/vaultbridge/protect"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Verb is the only helper verb: run a command from a sealed argument file.
const Verb = "run-command"

// HelperRequest is the argument list a helper process receives.
type HelperRequest struct {
	Verb           string
	ExecutablePath string
	Command        string
	File           string
	Salt           string
}

// ParseHelperArgs reads a HelperRequest from
// [Verb, ExecutablePath, CommandName, TempFilePath, Base64Salt].
func ParseHelperArgs(args []string) (HelperRequest, error) {
	if len(args) != 5 {
		return HelperRequest{}, fmt.Errorf("helper expects 5 arguments, got %d", len(args))
	}
	req := HelperRequest{
		Verb:           args[0],
		ExecutablePath: args[1],
		Command:        args[2],
		File:           args[3],
		Salt:           args[4],
	}
	if req.Verb != Verb {
		return HelperRequest{}, fmt.Errorf("unknown helper verb: %q", req.Verb)
	}
	return req, nil
}

// Args returns the argument list for the request.
func (r HelperRequest) Args() []string {
	return []string{r.Verb, r.ExecutablePath, r.Command, r.File, r.Salt}
}

// Launcher starts a helper process and waits for it to exit.
type Launcher interface {
	Launch(ctx context.Context, argv []string) (exitCode int, err error)
}

// ExecLauncher runs argv with os/exec, optionally prefixed by a terminal
// emulator command line such as ["x-terminal-emulator", "-e"].
type ExecLauncher struct {
	Terminal []string
}

// Launch implements Launcher.
func (l ExecLauncher) Launch(ctx context.Context, argv []string) (int, error) {
	full := append(append([]string{}, l.Terminal...), argv...)
	if len(full) == 0 {
		return 0, errors.New("empty helper command line")
	}

	cmd := exec.CommandContext(ctx, full[0], full[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 0, fmt.Errorf("starting helper: %w", err)
	}
	return 0, nil
}

// Helper moves materialized arguments into a separate process through a
// sealed single-use file.
type Helper struct {
	Fs         afero.Fs
	TempDir    string
	Protector  protect.Protector
	Launcher   Launcher
	Executable string
	// Prefix is inserted between the executable and the helper arguments,
	// e.g. the CLI subcommand that runs the helper.
	Prefix []string
	Logger zerolog.Logger
}

// Invoke seals args for command, launches the helper and waits for it.
func (h *Helper) Invoke(ctx context.Context, command string, args interface{}) (int, error) {
	payload, err := ijson.Encode(args)
	if err != nil {
		return 0, err
	}
	salt, err := protect.NewSalt()
	if err != nil {
		return 0, err
	}
	sealed, err := h.Protector.Seal(payload, salt)
	if err != nil {
		return 0, fmt.Errorf("sealing arguments: %w", err)
	}

	path, err := h.writeTemp(sealed)
	if err != nil {
		return 0, err
	}

	req := HelperRequest{
		Verb:           Verb,
		ExecutablePath: h.Executable,
		Command:        command,
		File:           path,
		Salt:           base64.StdEncoding.EncodeToString(salt),
	}
	argv := append([]string{h.Executable}, h.Prefix...)
	argv = append(argv, req.Args()...)

	h.Logger.Debug().Str("command", command).Str("file", path).Msg("launching helper")
	code, err := h.Launcher.Launch(ctx, argv)
	if err != nil {
		// The helper never started, so nobody else will delete the file.
		_ = h.Fs.Remove(path)
		return 0, err
	}
	return code, nil
}

func (h *Helper) writeTemp(data []byte) (string, error) {
	dir := h.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := h.Fs.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating temp directory: %w", err)
	}
	f, err := afero.TempFile(h.Fs, dir, "vaultbridge-*.sealed")
	if err != nil {
		return "", fmt.Errorf("creating argument file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = h.Fs.Remove(f.Name())
		return "", fmt.Errorf("writing argument file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = h.Fs.Remove(f.Name())
		return "", fmt.Errorf("closing argument file: %w", err)
	}
	return f.Name(), nil
}

// Receive reads and deletes the argument file of req and returns the
// opened payload.
func (h *Helper) Receive(req HelperRequest) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(req.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}

	sealed, err := afero.ReadFile(h.Fs, req.File)
	if err != nil {
		return nil, fmt.Errorf("reading argument file: %w", err)
	}
	if err := h.Fs.Remove(req.File); err != nil {
		h.Logger.Warn().Err(err).Str("file", req.File).Msg("failed to delete argument file")
	}

	payload, err := h.Protector.Open(sealed, salt)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
