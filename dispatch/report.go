package dispatch

import (
	"bufio"
	"fmt"
	"io"

	"github.com/richinex/vaultbridge/commands"
	"github.com/rs/zerolog"
)

// Reporter shows a failed dispatch to the user.
type Reporter interface {
	Report(ec commands.ExecContext, title string, err error)
}

// HostReporter logs the failure and prints a dialog-style message.
type HostReporter struct {
	Logger zerolog.Logger
}

// Report implements Reporter.
func (r HostReporter) Report(ec commands.ExecContext, title string, err error) {
	r.Logger.Error().Err(err).Msg(title)
	if ec.Stderr != nil {
		fmt.Fprintf(ec.Stderr, "%s\n\n%v\n", title, err)
	}
}

// ConsoleReporter prints the failure and holds the console open until the
// user presses Enter, so a terminal window does not vanish with the message.
type ConsoleReporter struct{}

// Report implements Reporter.
func (ConsoleReporter) Report(ec commands.ExecContext, title string, err error) {
	out := ec.Stderr
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, "%s: %v\n", title, err)
	if ec.Stdin == nil {
		return
	}
	fmt.Fprint(out, "Press Enter to continue...")
	_, _ = bufio.NewReader(ec.Stdin).ReadString('\n')
}
