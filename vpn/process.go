package vpn

import (
	"bytes"
	"os/exec"
	"strings"
	"syscall"
)

// tunnelProcess abstracts the spawned VPN client process so tests can
// substitute a fake.
type tunnelProcess interface {
	// Start launches the process.
	Start() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// ExitErr reports the wait result. Valid once Done is closed.
	ExitErr() error
	// Stderr returns captured client output. Valid once Done is closed.
	Stderr() string
	// Terminate sends SIGTERM to the process group.
	Terminate() error
	// Kill force kills the process group.
	Kill() error
	// Pid returns the process ID, or 0 before Start.
	Pid() int
}

// execProcess runs the VPN client through os/exec. The child is
// started in its own session so it survives supervisor signals and
// can be signalled as a group.
type execProcess struct {
	cmd     *exec.Cmd
	stderr  bytes.Buffer
	done    chan struct{}
	exitErr error
}

func newExecProcess(binary string, args []string) tunnelProcess {
	cmd := exec.Command(binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	p := &execProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	cmd.Stderr = &p.stderr
	return p
}

func (p *execProcess) Start() error {
	if err := p.cmd.Start(); err != nil {
		return err
	}

	go func() {
		p.exitErr = p.cmd.Wait()
		close(p.done)
	}()
	return nil
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitErr() error { return p.exitErr }

func (p *execProcess) Stderr() string { return strings.TrimSpace(p.stderr.String()) }

func (p *execProcess) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-p.cmd.Process.Pid, syscall.SIGTERM)
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
}

func (p *execProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
