package gateway

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/internal/utils"
	"github.com/rxtech-lab/lean-toolbox/internal/version"
	"go.uber.org/zap"
)

const (
	eventBuffer     = 64
	stopGracePeriod = 10 * time.Second
)

// ProcessController runs the gateway launcher found under
// {GatewayDirectory}/ibgateway/{version}/. Credentials travel in the child environment,
// never on the command line.
type ProcessController struct {
	settings Settings
	logger   *logger.Logger

	// command overrides the resolved launcher when set.
	command string
	args    []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	running bool
	events  chan Event
	done    chan struct{}
}

// NewProcessController returns a controller for the given installation. Nothing is
// launched until Start.
func NewProcessController(settings Settings, log *logger.Logger) *ProcessController {
	return &ProcessController{
		settings: settings,
		logger:   log,
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}
}

func newCommandController(settings Settings, log *logger.Logger, command string, args ...string) *ProcessController {
	controller := NewProcessController(settings, log)
	controller.command = command
	controller.args = args

	return controller
}

// Start launches the gateway. A controller can be started once.
func (p *ProcessController) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return &StartError{Kind: StartErrorProcessStartFailed, Message: "controller was already started"}
	}

	name, args, err := p.launcher()
	if err != nil {
		return err
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = filepath.Dir(name)
	cmd.Env = append(os.Environ(), p.environment()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &StartError{Kind: StartErrorProcessStartFailed, Message: err.Error(), Cause: err}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &StartError{Kind: StartErrorProcessStartFailed, Message: err.Error(), Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return &StartError{Kind: StartErrorProcessStartFailed, Message: err.Error(), Cause: err}
	}

	p.cmd = cmd
	p.started = true
	p.running = true

	p.logger.Info("Gateway process started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("settings", p.settings.String()),
	)

	go p.supervise(cmd, stdout, stderr)

	return nil
}

// Stop interrupts the gateway and kills it if it has not exited within the grace period.
func (p *ProcessController) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()

		return nil
	}

	process := p.cmd.Process
	done := p.done
	p.mu.Unlock()

	if runtime.GOOS == "windows" || process.Signal(os.Interrupt) != nil {
		if err := process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}

	select {
	case <-done:
		return nil
	case <-time.After(stopGracePeriod):
	}

	p.logger.Warn("Gateway did not exit after interrupt, killing it", zap.Int("pid", process.Pid))

	if err := process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	<-done

	return nil
}

func (p *ProcessController) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.running
}

func (p *ProcessController) Events() <-chan Event {
	return p.events
}

func (p *ProcessController) launcher() (string, []string, error) {
	if p.command != "" {
		return p.command, p.args, nil
	}

	versionsDir := filepath.Join(p.settings.GatewayDirectory, "ibgateway")

	installed, err := version.ResolveInstalled(versionsDir, p.settings.Version)
	if err != nil {
		return "", nil, &StartError{Kind: StartErrorVersionNotInstalled, Message: err.Error(), Cause: err}
	}

	name := "ibgateway"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	path := filepath.Join(versionsDir, installed, name)
	if !utils.FileExists(path) {
		return "", nil, &StartError{
			Kind:    StartErrorProcessStartFailed,
			Message: "gateway launcher not found at '" + path + "'.",
		}
	}

	return path, nil, nil
}

func (p *ProcessController) environment() []string {
	return []string{
		"IB_USERNAME=" + p.settings.Username,
		"IB_PASSWORD=" + p.settings.Password,
		"IB_TRADING_MODE=" + p.settings.TradingMode,
		"GATEWAY_PORT=" + strconv.Itoa(p.settings.Port),
		"IB_AUTOMATER_EXPORT_LOGS=" + strconv.FormatBool(p.settings.ExportLogs),
	}
}

// supervise forwards output lines, reaps the process and closes the event channel.
func (p *ProcessController) supervise(cmd *exec.Cmd, stdout, stderr io.Reader) {
	var wg sync.WaitGroup

	wg.Add(2)

	go p.forward(&wg, stdout, EventOutput)
	go p.forward(&wg, stderr, EventError)

	wg.Wait()

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		exitCode = -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	p.emit(Event{Type: EventExited, ExitCode: exitCode})

	p.mu.Lock()
	p.running = false
	close(p.events)
	close(p.done)
	p.mu.Unlock()
}

func (p *ProcessController) forward(wg *sync.WaitGroup, r io.Reader, eventType EventType) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		p.emit(Event{Type: eventType, Message: line})
	}
}

func (p *ProcessController) emit(event Event) {
	select {
	case p.events <- event:
	default:
		p.logger.Debug("Dropping gateway event, no reader", zap.String("type", string(event.Type)))
	}
}
