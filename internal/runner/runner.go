package runner

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ramohamadh/V2rayClient/internal/config"
	"github.com/ramohamadh/V2rayClient/internal/logger"

	"golang.org/x/net/proxy"
)

const (
	startGrace  = 1 * time.Second
	stopTimeout = 10 * time.Second
	testTimeout = 10 * time.Second
)

// Runner supervises the external engine process. It is not safe to drive
// one Runner from multiple goroutines beyond the exit watcher it spawns.
type Runner struct {
	binary     string
	installDir string
	configPath string
	socksPort  int

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

type Status struct {
	State    string // not_started, running or stopped
	PID      int
	ExitCode int
}

func New(engine config.EngineConfig, configPath string, socksPort int) *Runner {
	return &Runner{
		binary:     engine.Binary,
		installDir: engine.InstallDir,
		configPath: configPath,
		socksPort:  socksPort,
	}
}

// Start launches the engine and confirms it survives its first second.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running() {
		return fmt.Errorf("engine already running")
	}

	bin, err := r.locateBinary()
	if err != nil {
		return err
	}

	if _, err := os.Stat(r.configPath); err != nil {
		return fmt.Errorf("config file not found: %s", r.configPath)
	}

	cmd := exec.Command(bin, "run", "-c", r.configPath)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	done := make(chan struct{})
	r.cmd = cmd
	r.done = done

	var pumps sync.WaitGroup
	pumps.Add(2)
	go pump(stdout, false, &pumps)
	go pump(stderr, true, &pumps)

	// Wait must not run before both pipes are drained.
	go func() {
		pumps.Wait()
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cmd = nil
		r.done = nil
		return fmt.Errorf("engine exited immediately with code %d, see log output", cmd.ProcessState.ExitCode())
	case <-time.After(startGrace):
	}

	logger.Log.Infof("Engine started with PID %d", cmd.Process.Pid)
	return nil
}

// Stop asks the engine to terminate and kills it if it lingers.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return
	}

	select {
	case <-r.done:
	default:
		logger.Log.Info("Stopping engine...")
		if err := r.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			_ = r.cmd.Process.Kill()
		}

		select {
		case <-r.done:
		case <-time.After(stopTimeout):
			logger.Log.Warn("Engine did not stop gracefully, forcing kill")
			_ = r.cmd.Process.Kill()
			<-r.done
		}
	}

	r.cmd = nil
	r.done = nil
}

func (r *Runner) Restart() error {
	logger.Log.Info("Restarting engine...")
	r.Stop()
	time.Sleep(1 * time.Second)
	return r.Start()
}

func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running()
}

// running assumes r.mu is held.
func (r *Runner) running() bool {
	if r.cmd == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return Status{State: "not_started"}
	}

	select {
	case <-r.done:
		return Status{State: "stopped", ExitCode: r.cmd.ProcessState.ExitCode()}
	default:
		return Status{State: "running", PID: r.cmd.Process.Pid}
	}
}

// Done returns a channel closed when the engine process exits. It is nil
// until Start has succeeded; receiving from it then blocks forever, which
// is the right behavior inside a select against signals.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// TestConnection fetches testURL through the local socks inbound and
// reports the round trip time.
func (r *Runner) TestConnection(testURL string) (time.Duration, error) {
	if !r.IsRunning() {
		return 0, fmt.Errorf("engine is not running")
	}

	dialer, err := proxy.SOCKS5("tcp", fmt.Sprintf("127.0.0.1:%d", r.socksPort), nil, proxy.Direct)
	if err != nil {
		return 0, fmt.Errorf("failed to build socks dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return 0, fmt.Errorf("socks dialer does not support context")
	}

	client := &http.Client{
		Transport: &http.Transport{DialContext: contextDialer.DialContext},
		Timeout:   testTimeout,
	}

	start := time.Now()
	resp, err := client.Get(testURL)
	if err != nil {
		return 0, fmt.Errorf("connection test failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("connection test failed with status: %d", resp.StatusCode)
	}
	return time.Since(start), nil
}

// Locate resolves the engine binary without starting it.
func (r *Runner) Locate() (string, error) {
	return r.locateBinary()
}

// locateBinary resolves the configured binary against the usual spots:
// the path itself, the working directory, the install directory and PATH.
func (r *Runner) locateBinary() (string, error) {
	var tried []string

	if filepath.IsAbs(r.binary) {
		if isFile(r.binary) {
			return r.binary, nil
		}
		tried = append(tried, r.binary)
	} else {
		local := filepath.Clean(r.binary)
		if isFile(local) {
			return local, nil
		}
		tried = append(tried, local)

		installed := filepath.Join(r.installDir, filepath.Base(r.binary))
		if isFile(installed) {
			return installed, nil
		}
		tried = append(tried, installed)
	}

	if fromPath, err := exec.LookPath(filepath.Base(r.binary)); err == nil {
		return fromPath, nil
	}
	tried = append(tried, filepath.Base(r.binary)+" in PATH")

	return "", fmt.Errorf("engine binary not found, tried: %s", strings.Join(tried, ", "))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func pump(pipe io.ReadCloser, isErr bool, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isErr {
			logger.Log.Warnf("[v2ray] %s", line)
		} else {
			logger.Log.Debugf("[v2ray] %s", line)
		}
	}
}
