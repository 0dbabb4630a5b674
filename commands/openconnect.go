// AnyConnect-compatible VPN Command.
//
// Information Hiding:
// - openconnect invocation and password hand-off hidden
// - Session tracking across processes hidden behind a pid file

package commands

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// OpenConnectCommand connects to an AnyConnect-compatible VPN gateway.
// Only one tunnel can be up at a time, so the command requires other
// commands to disconnect first and can itself be disconnected.
type OpenConnectCommand struct {
	binary   string
	pid      pidFile
	grace    time.Duration
	lookPath func(string) (string, error)
}

// NewOpenConnectCommand creates the VPN command. The running session's pid
// is tracked in stateDir on fs; a nil fs is the OS filesystem.
func NewOpenConnectCommand(fs afero.Fs, stateDir string) *OpenConnectCommand {
	return &OpenConnectCommand{
		binary:   "openconnect",
		pid:      newPIDFile(fs, stateDir, "openconnect"),
		grace:    10 * time.Second,
		lookPath: exec.LookPath,
	}
}

// Metadata returns the command metadata.
func (c *OpenConnectCommand) Metadata() Metadata {
	return Metadata{
		Name:        "openconnect",
		Description: "Connect to an AnyConnect-compatible VPN gateway",
		Parameters: []Parameter{
			{Name: "gateway", ParamType: "string", Description: "VPN gateway", Required: true},
			{Name: "username", ParamType: "string", Description: "Login user", Required: false},
			{Name: "password", ParamType: "string", Description: "Login password", Required: false},
			{Name: "group", ParamType: "string", Description: "Authentication group", Required: false},
			{Name: "servercert", ParamType: "string", Description: "Pinned server certificate hash", Required: false},
			{Name: "protocol", ParamType: "string", Description: "anyconnect, gp, pulse, fortinet (default anyconnect)", Required: false},
		},
		RequireDisconnect: true,
		RequireTerminal:   true,
	}
}

// OpenConnectArgs are the arguments of the openconnect command.
type OpenConnectArgs struct {
	Gateway    string `json:"gateway"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Group      string `json:"group"`
	ServerCert string `json:"servercert"`
	Protocol   string `json:"protocol"`
}

// NewArgs returns a new argument value.
func (c *OpenConnectCommand) NewArgs() interface{} {
	return &OpenConnectArgs{}
}

// CanExecute reports whether openconnect is installed.
func (c *OpenConnectCommand) CanExecute() bool {
	_, err := c.lookPath(c.binary)
	return err == nil
}

// Disconnect stops the tracked tunnel, if any.
func (c *OpenConnectCommand) Disconnect(ctx context.Context) bool {
	return c.pid.stop(ctx, c.grace)
}

func openConnectArgs(a *OpenConnectArgs) []string {
	protocol := a.Protocol
	if protocol == "" {
		protocol = "anyconnect"
	}
	argv := []string{"--protocol=" + strings.ToLower(protocol)}
	if a.Username != "" {
		argv = append(argv, "--user="+a.Username)
	}
	if a.Group != "" {
		argv = append(argv, "--authgroup="+a.Group)
	}
	if a.ServerCert != "" {
		argv = append(argv, "--servercert="+a.ServerCert)
	}
	if a.Password != "" {
		argv = append(argv, "--passwd-on-stdin")
	}
	return append(argv, a.Gateway)
}

// Execute brings the tunnel up and blocks until it goes down.
func (c *OpenConnectCommand) Execute(ctx context.Context, ec ExecContext, args interface{}) error {
	a, err := argsAs[OpenConnectArgs]("openconnect", args)
	if err != nil {
		return err
	}
	if a.Gateway == "" {
		return fmt.Errorf("gateway cannot be empty")
	}

	path, err := c.lookPath(c.binary)
	if err != nil {
		return fmt.Errorf("openconnect not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, openConnectArgs(a)...)
	if a.Password != "" {
		cmd.Stdin = strings.NewReader(a.Password + "\n")
	} else {
		cmd.Stdin = ec.Stdin
	}
	cmd.Stdout = ec.stdout()
	cmd.Stderr = ec.stderr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start openconnect: %w", err)
	}
	if err := c.pid.write(cmd.Process.Pid); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}
	defer c.pid.remove()

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("openconnect exited with code %d", exitErr.ExitCode())
		}
		return fmt.Errorf("openconnect failed: %w", err)
	}
	return nil
}
