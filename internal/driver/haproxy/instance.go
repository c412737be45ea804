package haproxy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	configFileName = "haproxy.cfg"
	pidFileName    = "haproxy.pid"
	socketFileName = "haproxy.sock"

	stateDirMode = 0o755
)

// Supervisor runs one haproxy process per load balancer under a state
// directory, one subdirectory per instance holding the rendered config, the
// pid file and the stats socket.
type Supervisor struct {
	stateDir string
	binary   string
	logger   *zap.SugaredLogger
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(s *Supervisor)

// WithBinary overrides the haproxy binary path.
func WithBinary(path string) SupervisorOption {
	return func(s *Supervisor) {
		s.binary = path
	}
}

// WithSupervisorLogger sets the supervisor logger.
func WithSupervisorLogger(logger *zap.SugaredLogger) SupervisorOption {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// NewSupervisor returns a supervisor rooted at stateDir.
func NewSupervisor(stateDir string, options ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		stateDir: stateDir,
		binary:   "haproxy",
		logger:   zap.NewNop().Sugar(),
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

func (s *Supervisor) instanceDir(id string) string {
	return filepath.Join(s.stateDir, id)
}

// SocketPath returns the stats socket path for an instance.
func (s *Supervisor) SocketPath(id string) string {
	return filepath.Join(s.instanceDir(id), socketFileName)
}

// Deployed reports whether an instance has a live process.
func (s *Supervisor) Deployed(id string) bool {
	pids, err := s.pids(id)

	return err == nil && len(pids) > 0
}

// Deploy writes the config for an instance and starts or reloads its
// process. A running process is reloaded seamlessly via -sf.
func (s *Supervisor) Deploy(ctx context.Context, id, config string) error {
	dir := s.instanceDir(id)

	if err := os.MkdirAll(dir, stateDirMode); err != nil {
		return err
	}

	cfgPath := filepath.Join(dir, configFileName)
	if err := os.WriteFile(cfgPath, []byte(config), 0o644); err != nil {
		return err
	}

	pidPath := filepath.Join(dir, pidFileName)
	args := []string{"-f", cfgPath, "-p", pidPath}

	if pids, err := s.pids(id); err == nil && len(pids) > 0 {
		args = append(args, "-sf")

		for _, pid := range pids {
			args = append(args, strconv.Itoa(pid))
		}
	}

	cmd := exec.CommandContext(ctx, s.binary, args...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("spawning haproxy for %s: %w: %s", id, err, strings.TrimSpace(string(out)))
	}

	s.logger.Infow("deployed haproxy instance", "loadBalancerID", id)

	return nil
}

// Undeploy stops an instance's process and removes its state directory.
func (s *Supervisor) Undeploy(ctx context.Context, id string) error {
	if err := s.killInstance(id); err != nil {
		return err
	}

	if err := os.RemoveAll(s.instanceDir(id)); err != nil {
		return err
	}

	s.logger.Infow("undeployed haproxy instance", "loadBalancerID", id)

	return nil
}

// RemoveOrphans undeploys every instance in the state directory whose id is
// not in known. Run at start-up to reap leftovers of deleted load balancers.
func (s *Supervisor) RemoveOrphans(ctx context.Context, known map[string]bool) error {
	entries, err := os.ReadDir(s.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() || known[entry.Name()] {
			continue
		}

		s.logger.Infow("removing orphaned haproxy instance", "loadBalancerID", entry.Name())

		if err := s.Undeploy(ctx, entry.Name()); err != nil {
			s.logger.Errorw("failed to remove orphaned instance", "loadBalancerID", entry.Name(), "error", err)
		}
	}

	return nil
}

// pids reads the live pids from an instance's pid file, skipping entries
// whose process is gone.
func (s *Supervisor) pids(id string) ([]int, error) {
	raw, err := os.ReadFile(filepath.Join(s.instanceDir(id), pidFileName))
	if err != nil {
		return nil, err
	}

	var pids []int

	for _, line := range strings.Fields(string(raw)) {
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}

		if syscall.Kill(pid, 0) == nil {
			pids = append(pids, pid)
		}
	}

	return pids, nil
}

func (s *Supervisor) killInstance(id string) error {
	pids, err := s.pids(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	for _, pid := range pids {
		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
			return fmt.Errorf("stopping haproxy pid %d for %s: %w", pid, id, err)
		}
	}

	// give the processes a moment before the state dir disappears under them
	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		if alive, _ := s.pids(id); len(alive) == 0 {
			break
		}

		time.Sleep(50 * time.Millisecond)
	}

	return nil
}
