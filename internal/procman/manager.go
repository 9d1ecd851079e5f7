// Package procman launches and tracks the automation scripts configured in
// settings. Each script runs at most once at a time and its output is
// appended to a per-script log file.
package procman

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
	"github.com/doridoridoriand/nodeboard/internal/log"
	"go.uber.org/zap"
)

var (
	ErrUnknownScript  = errors.New("unknown script")
	ErrAlreadyRunning = errors.New("script already running")
	ErrNotRunning     = errors.New("script not running")
)

// State is the lifecycle state of a script.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StateExited  State = "exited"
	StateFailed  State = "failed"
	StateKilled  State = "killed"
)

// Status describes one script.
type Status struct {
	Name      string
	State     State
	PID       int
	StartedAt time.Time
	ExitedAt  time.Time
	ExitCode  int
	LogPath   string
	Err       string
}

// Uptime returns how long the script has been (or was) running.
func (s Status) Uptime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.State == StateRunning {
		return now.Sub(s.StartedAt)
	}
	return s.ExitedAt.Sub(s.StartedAt)
}

type process struct {
	cmd      *exec.Cmd
	logFile  *os.File
	done     chan struct{}
	stopping bool
	status   Status
}

// Manager owns the script processes.
type Manager struct {
	logDir string
	logger *log.Logger

	mu      sync.Mutex
	order   []string
	scripts map[string]config.ScriptConfig
	procs   map[string]*process
}

// NewManager returns a manager for scripts. Script output goes to
// <logDir>/<name>.log.
func NewManager(scripts []config.ScriptConfig, logDir string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	m := &Manager{
		logDir:  logDir,
		logger:  logger,
		scripts: make(map[string]config.ScriptConfig, len(scripts)),
		procs:   make(map[string]*process),
	}
	for _, script := range scripts {
		if script.Name == "" || script.Command == "" {
			continue
		}
		if _, dup := m.scripts[script.Name]; dup {
			continue
		}
		m.order = append(m.order, script.Name)
		m.scripts[script.Name] = script
	}
	return m
}

// Scripts returns the configured scripts in order.
func (m *Manager) Scripts() []config.ScriptConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]config.ScriptConfig, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.scripts[name])
	}
	return out
}

// Start launches the named script. The process is killed if ctx is
// cancelled before it exits.
func (m *Manager) Start(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	script, ok := m.scripts[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScript, name)
	}
	if proc, ok := m.procs[name]; ok && proc.status.State == StateRunning {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}

	logPath := m.logPath(name)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open script log: %w", err)
	}

	cmd := exec.CommandContext(ctx, script.Command, script.Args...)
	cmd.Dir = script.Dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	fmt.Fprintf(logFile, "[%s] starting: %s %s\n",
		time.Now().Format(time.RFC3339), script.Command, strings.Join(script.Args, " "))

	proc := &process{
		cmd:     cmd,
		logFile: logFile,
		done:    make(chan struct{}),
		status:  Status{Name: name, LogPath: logPath},
	}
	if err := cmd.Start(); err != nil {
		logFile.Close()
		proc.status.State = StateFailed
		proc.status.ExitCode = -1
		proc.status.Err = err.Error()
		close(proc.done)
		m.procs[name] = proc
		m.logger.Error(log.CategoryProcess, "script failed to start", zap.String("script", name), zap.Error(err))
		return fmt.Errorf("start %s: %w", name, err)
	}

	proc.status.State = StateRunning
	proc.status.PID = cmd.Process.Pid
	proc.status.StartedAt = time.Now()
	m.procs[name] = proc
	m.logger.Info(log.CategoryProcess, "script started", zap.String("script", name), zap.Int("pid", proc.status.PID))

	go m.wait(ctx, proc)
	return nil
}

func (m *Manager) wait(ctx context.Context, proc *process) {
	err := proc.cmd.Wait()

	m.mu.Lock()
	proc.status.ExitedAt = time.Now()
	proc.status.PID = 0
	proc.status.ExitCode = proc.cmd.ProcessState.ExitCode()
	switch {
	case proc.stopping || ctx.Err() != nil:
		proc.status.State = StateKilled
	case err != nil:
		proc.status.State = StateFailed
		proc.status.Err = err.Error()
	default:
		proc.status.State = StateExited
	}
	status := proc.status
	fmt.Fprintf(proc.logFile, "[%s] %s (exit code %d)\n",
		status.ExitedAt.Format(time.RFC3339), status.State, status.ExitCode)
	proc.logFile.Close()
	m.mu.Unlock()

	close(proc.done)
	m.logger.Info(log.CategoryProcess, "script finished",
		zap.String("script", status.Name),
		zap.String("state", string(status.State)),
		zap.Int("exit_code", status.ExitCode),
		zap.Duration("uptime", status.Uptime(status.ExitedAt)))
}

// Stop kills the named script.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	if _, ok := m.scripts[name]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownScript, name)
	}
	proc, ok := m.procs[name]
	if !ok || proc.status.State != StateRunning {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}
	proc.stopping = true
	process := proc.cmd.Process
	m.mu.Unlock()

	m.logger.Info(log.CategoryProcess, "stopping script", zap.String("script", name))
	if err := process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s: %w", name, err)
	}
	return nil
}

// Toggle starts the script if it is not running and stops it otherwise.
func (m *Manager) Toggle(ctx context.Context, name string) error {
	err := m.Start(ctx, name)
	if errors.Is(err, ErrAlreadyRunning) {
		return m.Stop(name)
	}
	return err
}

// Wait blocks until the named script's current run ends or ctx is done.
func (m *Manager) Wait(ctx context.Context, name string) (Status, error) {
	m.mu.Lock()
	if _, ok := m.scripts[name]; !ok {
		m.mu.Unlock()
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownScript, name)
	}
	proc, ok := m.procs[name]
	m.mu.Unlock()
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrNotRunning, name)
	}

	select {
	case <-proc.done:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return proc.status, nil
}

// StopAll kills every running script and waits up to timeout for them to exit.
func (m *Manager) StopAll(timeout time.Duration) {
	m.mu.Lock()
	var running []string
	for name, proc := range m.procs {
		if proc.status.State == StateRunning {
			running = append(running, name)
		}
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, name := range running {
		_ = m.Stop(name)
		_, _ = m.Wait(ctx, name)
	}
}

// Status returns every configured script in order. Scripts never started
// report StateStopped.
func (m *Manager) Status() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, 0, len(m.order))
	for _, name := range m.order {
		if proc, ok := m.procs[name]; ok {
			out = append(out, proc.status)
			continue
		}
		out = append(out, Status{Name: name, State: StateStopped, LogPath: m.logPath(name)})
	}
	return out
}

func (m *Manager) logPath(name string) string {
	return filepath.Join(m.logDir, sanitize(name)+".log")
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
