// Remote Desktop Command.
//
// Information Hiding:
// - Client discovery (mstsc / xfreerdp) hidden
// - Credential hand-off (cmdkey / stdin) hidden

package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"
	ijson "github.com/richinex/vaultbridge/internal/json"
)

// RDPCommand opens a remote desktop session.
type RDPCommand struct {
	BaseCommand
	stateDir string
	clients  []string
	lookPath func(string) (string, error)
}

// NewRDPCommand creates an RDP command. Connection files are written to
// stateDir on Windows.
func NewRDPCommand(stateDir string) *RDPCommand {
	clients := []string{"xfreerdp3", "xfreerdp", "wlfreerdp"}
	if runtime.GOOS == "windows" {
		clients = []string{"mstsc"}
	}
	return &RDPCommand{stateDir: stateDir, clients: clients, lookPath: exec.LookPath}
}

// Metadata returns the command metadata.
func (c *RDPCommand) Metadata() Metadata {
	return Metadata{
		Name:        "rdp",
		Description: "Open a remote desktop session",
		Parameters: []Parameter{
			{Name: "host", ParamType: "string", Description: "Server host name or address", Required: true},
			{Name: "port", ParamType: "integer", Description: "Server port (default 3389)", Required: false},
			{Name: "username", ParamType: "string", Description: "Login user", Required: false},
			{Name: "password", ParamType: "string", Description: "Login password", Required: false},
			{Name: "domain", ParamType: "string", Description: "Login domain", Required: false},
			{Name: "fullscreen", ParamType: "boolean", Description: "Start full screen", Required: false},
		},
	}
}

// RDPArgs are the arguments of the rdp command.
type RDPArgs struct {
	Host       string     `json:"host"`
	Port       ijson.Int  `json:"port"`
	Username   string     `json:"username"`
	Password   string     `json:"password"`
	Domain     string     `json:"domain"`
	Fullscreen ijson.Bool `json:"fullscreen"`
}

// Address returns host:port.
func (a RDPArgs) Address() string {
	port := int(a.Port)
	if port == 0 {
		port = 3389
	}
	return a.Host + ":" + strconv.Itoa(port)
}

// NewArgs returns a new argument value.
func (c *RDPCommand) NewArgs() interface{} {
	return &RDPArgs{}
}

// CanExecute reports whether an RDP client is installed.
func (c *RDPCommand) CanExecute() bool {
	_, err := c.client()
	return err == nil
}

func (c *RDPCommand) client() (string, error) {
	for _, name := range c.clients {
		if path, err := c.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no RDP client found (tried %s)", strings.Join(c.clients, ", "))
}

// Execute starts the client.
func (c *RDPCommand) Execute(ctx context.Context, ec ExecContext, args interface{}) error {
	a, err := argsAs[RDPArgs]("rdp", args)
	if err != nil {
		return err
	}
	if a.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	client, err := c.client()
	if err != nil {
		return err
	}

	if runtime.GOOS == "windows" {
		return c.runMstsc(ctx, client, a)
	}

	cmd := exec.CommandContext(ctx, client, freeRDPArgs(a)...)
	cmd.Stdin = strings.NewReader(a.Password + "\n")
	cmd.Stdout = ec.stdout()
	cmd.Stderr = ec.stderr()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", filepath.Base(client), err)
	}
	return cmd.Process.Release()
}

// freeRDPArgs builds the FreeRDP command line. The password is read from
// stdin so it does not show up in the process list.
func freeRDPArgs(a *RDPArgs) []string {
	argv := []string{"/v:" + a.Address(), "/cert:tofu"}
	if a.Username != "" {
		argv = append(argv, "/u:"+a.Username)
	}
	if a.Domain != "" {
		argv = append(argv, "/d:"+a.Domain)
	}
	if a.Password != "" {
		argv = append(argv, "/from-stdin:force")
	}
	if a.Fullscreen {
		argv = append(argv, "/f")
	}
	return argv
}

// rdpFile renders an .rdp connection file.
func rdpFile(a *RDPArgs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "full address:s:%s\r\n", a.Address())
	if a.Username != "" {
		user := a.Username
		if a.Domain != "" {
			user = a.Domain + `\` + a.Username
		}
		fmt.Fprintf(&b, "username:s:%s\r\n", user)
	}
	screen := 1
	if a.Fullscreen {
		screen = 2
	}
	fmt.Fprintf(&b, "screen mode id:i:%d\r\n", screen)
	b.WriteString("prompt for credentials:i:0\r\n")
	return b.String()
}

func (c *RDPCommand) runMstsc(ctx context.Context, client string, a *RDPArgs) error {
	if a.Password != "" {
		user := a.Username
		if a.Domain != "" {
			user = a.Domain + `\` + a.Username
		}
		store := exec.CommandContext(ctx, "cmdkey", "/generic:TERMSRV/"+a.Host, "/user:"+user, "/pass:"+a.Password)
		if out, err := store.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to store credentials: %w: %s", err, strings.TrimSpace(string(out)))
		}
	}

	dir := c.stateDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	path := filepath.Join(dir, "rdp-"+uuid.NewString()+".rdp")
	if err := os.WriteFile(path, []byte(rdpFile(a)), 0600); err != nil {
		return fmt.Errorf("failed to write connection file: %w", err)
	}

	cmd := exec.Command(client, path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start mstsc: %w", err)
	}
	return cmd.Process.Release()
}
