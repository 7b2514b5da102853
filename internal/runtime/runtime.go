// Package runtime runs the startup commands of tool servers that the orchestrator is responsible for launching.
package runtime

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"reflect"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcporch/internal/domain"
)

// Launcher starts server processes.
type Launcher interface {
	Launch(ctx context.Context, desc domain.ServerDescriptor) (Process, error)
}

// Process is a running server process.
type Process interface {
	// PID returns the operating system process ID.
	PID() int

	// Exited is closed once the process has terminated.
	Exited() <-chan struct{}

	// Err returns the process exit error once Exited is closed.
	Err() error

	// Stop asks the process to terminate and kills it if it has not exited within timeout.
	Stop(timeout time.Duration) error
}

// ExecLauncher launches processes with os/exec, forwarding their output to the logger.
// NewExecLauncher should be used to create instances of ExecLauncher.
type ExecLauncher struct {
	logger hclog.Logger
}

var _ Launcher = (*ExecLauncher)(nil)

// NewExecLauncher creates an ExecLauncher.
func NewExecLauncher(logger hclog.Logger) (*ExecLauncher, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &ExecLauncher{logger: logger.Named("runtime")}, nil
}

// Launch starts desc.Command with desc.Args, using the process environment overlaid with desc.Env.
// The process is not tied to ctx: it lives until Stop is called or it exits on its own.
func (l *ExecLauncher) Launch(ctx context.Context, desc domain.ServerDescriptor) (Process, error) {
	if !desc.Spawned() {
		return nil, fmt.Errorf("server '%s' has no startup command", desc.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := l.logger.With("server", desc.Name)

	cmd := exec.Command(desc.Command, desc.Args...)
	cmd.Env = Environ(desc.Env)
	cmd.WaitDelay = time.Second

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	logger.Info("Starting server process", "command", desc.Command, "args", desc.Args)

	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		return nil, fmt.Errorf("failed to start '%s' for server '%s': %w", desc.Command, desc.Name, err)
	}

	p := &process{
		cmd:    cmd,
		logger: logger,
		exited: make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go pipeLines(&readers, stdoutR, func(line string) { logger.Info("stdout", "line", line) })
	go pipeLines(&readers, stderrR, func(line string) { logger.Warn("stderr", "line", line) })

	go func() {
		err := cmd.Wait()
		_ = stdoutW.Close()
		_ = stderrW.Close()
		readers.Wait()

		p.mu.Lock()
		p.err = err
		p.mu.Unlock()

		if err != nil {
			logger.Warn("Server process exited", "pid", cmd.Process.Pid, "error", err)
		} else {
			logger.Info("Server process exited", "pid", cmd.Process.Pid)
		}
		close(p.exited)
	}()

	logger.Info("Server process started", "pid", cmd.Process.Pid)

	return p, nil
}

type process struct {
	cmd    *exec.Cmd
	logger hclog.Logger
	exited chan struct{}

	mu  sync.Mutex
	err error
}

func (p *process) PID() int {
	return p.cmd.Process.Pid
}

func (p *process) Exited() <-chan struct{} {
	return p.exited
}

func (p *process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stop sends SIGTERM, waits up to timeout, then kills the process.
func (p *process) Stop(timeout time.Duration) error {
	select {
	case <-p.exited:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		p.logger.Debug("Failed to signal server process, killing", "error", err)
		return p.kill()
	}

	select {
	case <-p.exited:
		return nil
	case <-time.After(timeout):
		p.logger.Warn("Server process did not exit in time, killing", "timeout", timeout)
		return p.kill()
	}
}

func (p *process) kill() error {
	if err := p.cmd.Process.Kill(); err != nil {
		select {
		case <-p.exited:
			return nil
		default:
		}
		return fmt.Errorf("failed to kill process %d: %w", p.cmd.Process.Pid, err)
	}
	<-p.exited
	return nil
}

// Environ returns the process environment with overrides applied, sorted by key.
func Environ(overrides map[string]string) []string {
	overrideEnvs := make([]string, 0, len(overrides))
	for k, v := range overrides {
		overrideEnvs = append(overrideEnvs, fmt.Sprintf("%s=%s", k, v))
	}
	return mergeEnvs(os.Environ(), overrideEnvs)
}

func mergeEnvs(baseEnvs, overrideEnvs []string) []string {
	envMap := make(map[string]string, len(baseEnvs))

	for _, e := range baseEnvs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	for _, e := range overrideEnvs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	slices.Sort(result)
	return result
}

func pipeLines(wg *sync.WaitGroup, r io.Reader, emit func(string)) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			emit(line)
		}
	}
	// Keep draining so the writer never blocks after a scan error.
	_, _ = io.Copy(io.Discard, r)
}
