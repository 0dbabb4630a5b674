package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
)

// pidFile tracks a long-running client process across host and helper
// processes, so a later dispatch can ask it to disconnect.
type pidFile struct {
	fs   afero.Fs
	path string
}

func newPIDFile(fs afero.Fs, stateDir, name string) pidFile {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if stateDir == "" {
		stateDir = os.TempDir()
	}
	return pidFile{fs: fs, path: filepath.Join(stateDir, name+".pid")}
}

func (p pidFile) write(pid int) error {
	if err := p.fs.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return afero.WriteFile(p.fs, p.path, []byte(strconv.Itoa(pid)), 0600)
}

func (p pidFile) read() (int, bool) {
	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func (p pidFile) remove() {
	_ = p.fs.Remove(p.path)
}

// stop interrupts the tracked process and waits for it to exit.
// Returns true when nothing is left running.
func (p pidFile) stop(ctx context.Context, grace time.Duration) bool {
	pid, ok := p.read()
	if !ok {
		p.remove()
		return true
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		p.remove()
		return true
	}

	if runtime.GOOS == "windows" {
		if err := proc.Kill(); err != nil && !gone(err) {
			return false
		}
		p.remove()
		return true
	}

	if !alive(proc) {
		p.remove()
		return true
	}
	if err := proc.Signal(os.Interrupt); err != nil && !gone(err) {
		return false
	}

	deadline := time.Now().Add(grace)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for alive(proc) {
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	p.remove()
	return true
}

// alive checks a process with signal 0.
func alive(proc *os.Process) bool {
	err := proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func gone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH)
}
