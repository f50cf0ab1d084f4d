package fixtures

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// FakeApp is a long-running child process with a chosen executable name,
// standing in for a distracting application.
type FakeApp struct {
	Name string
	cmd  *exec.Cmd
	done chan error
}

// StartFakeApp copies the system sleep binary to <dir>/<name> and runs it.
func StartFakeApp(dir, name string) (*FakeApp, error) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		return nil, fmt.Errorf("sleep binary not found: %w", err)
	}

	bin := filepath.Join(dir, name)
	if err := copyExecutable(sleep, bin); err != nil {
		return nil, err
	}

	cmd := exec.Command(bin, "300")
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	app := &FakeApp{Name: name, cmd: cmd, done: make(chan error, 1)}
	go func() { app.done <- cmd.Wait() }()
	return app, nil
}

// PID returns the process id.
func (a *FakeApp) PID() int {
	return a.cmd.Process.Pid
}

// Exited reports whether the process has been reaped.
func (a *FakeApp) Exited() bool {
	select {
	case err := <-a.done:
		a.done <- err
		return true
	default:
		return false
	}
}

// Stop kills the process if it is still running.
func (a *FakeApp) Stop() {
	if !a.Exited() {
		_ = a.cmd.Process.Kill()
	}
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
