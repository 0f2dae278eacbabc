package gateway

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rxtech-lab/lean-toolbox/internal/config"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/internal/utils"
	"github.com/rxtech-lab/lean-toolbox/internal/version"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"go.uber.org/zap"
)

const (
	ProbeTimeout      = 3 * time.Second
	ReadyTimeout      = 2 * time.Minute
	ReadyPollInterval = 2 * time.Second
)

// CIEnvironmentVariables disable gateway management when any of them is non-empty.
var CIEnvironmentVariables = []string{
	"CI", "CONTINUOUS_INTEGRATION", "BUILD_NUMBER", "BUILD_ID",
	"GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TEAMCITY_VERSION",
	"TF_BUILD", "APPVEYOR", "CIRCLECI", "TRAVIS", "DRONE",
}

// ControllerFactory builds a controller for the resolved settings.
type ControllerFactory func(settings Settings) Controller

// Probe reports whether something accepts connections on host:port.
type Probe func(ctx context.Context, host string, port int) bool

// ReadyWaiter blocks until host:port accepts connections or gives up.
type ReadyWaiter func(ctx context.Context, host string, port int) error

// Option customizes a Helper.
type Option func(*Helper)

func WithControllerFactory(factory ControllerFactory) Option {
	return func(h *Helper) { h.newController = factory }
}

func WithProbe(probe Probe) Option {
	return func(h *Helper) { h.probe = probe }
}

func WithReadyWaiter(waiter ReadyWaiter) Option {
	return func(h *Helper) { h.waitReady = waiter }
}

// WithLookupEnv replaces os.LookupEnv for CI detection.
func WithLookupEnv(lookup config.LookupEnv) Option {
	return func(h *Helper) { h.lookupEnv = lookup }
}

// Helper starts a local gateway for the duration of a download and stops it afterwards,
// but only if it was the one that started it.
type Helper struct {
	cfg    config.Config
	logger *logger.Logger

	lookupEnv     config.LookupEnv
	newController ControllerFactory
	probe         Probe
	waitReady     ReadyWaiter

	mu         sync.Mutex
	controller Controller
	started    bool
	detach     chan struct{}
	forwarding sync.WaitGroup
}

func NewHelper(cfg config.Config, log *logger.Logger, opts ...Option) *Helper {
	helper := &Helper{
		cfg:       cfg,
		logger:    log,
		lookupEnv: os.LookupEnv,
		probe:     IsListening,
		waitReady: func(ctx context.Context, host string, port int) error {
			return WaitForReady(ctx, host, port, ReadyTimeout, ReadyPollInterval)
		},
	}

	helper.newController = func(settings Settings) Controller {
		return NewProcessController(settings, helper.logger)
	}

	for _, opt := range opts {
		opt(helper)
	}

	return helper
}

// ShouldUse reports whether gateway management is allowed for this run.
func (h *Helper) ShouldUse(requested bool) bool {
	if !requested {
		return false
	}

	for _, name := range CIEnvironmentVariables {
		if value, ok := h.lookupEnv(name); ok && value != "" {
			h.logger.Warn("Detected CI environment, disabling gateway management", zap.String("variable", name))

			return false
		}
	}

	return true
}

// StartIfNeeded launches the gateway when requested, allowed, local and not already
// listening. It returns true only when this helper started a gateway that is now ready.
func (h *Helper) StartIfNeeded(ctx context.Context, host string, port int, requested bool) (bool, error) {
	if !requested {
		h.logger.Debug("Gateway management not requested")

		return false, nil
	}

	if !h.ShouldUse(true) {
		h.logger.Debug("Gateway management disabled by environment policy")

		return false, nil
	}

	if !IsLocalHost(host) {
		h.logger.Warn("Gateway management only works for local gateways", zap.String("host", host))

		return false, nil
	}

	if h.probe(ctx, host, port) {
		h.logger.Info("Gateway already listening, skipping start",
			zap.String("host", host),
			zap.Int("port", port),
		)

		return false, nil
	}

	settings, err := h.buildSettings(port)
	if err != nil {
		return false, err
	}

	h.logger.Info("Starting gateway",
		zap.String("trading_mode", settings.TradingMode),
		zap.String("version", settings.Version),
	)

	controller := h.newController(settings)
	detach := make(chan struct{})
	h.forwardEvents(controller, detach)

	if err := controller.Start(ctx); err != nil {
		h.cleanup(detach)
		h.logger.Error("Failed to start gateway", zap.Error(err))

		return false, errors.Wrap(errors.ErrCodeGatewayStartFailed, "failed to launch gateway", err)
	}

	h.logger.Info("Waiting for gateway to accept connections...")

	if err := h.waitReady(ctx, host, settings.Port); err != nil {
		if stopErr := controller.Stop(); stopErr != nil {
			h.logger.Warn("Error while stopping gateway", zap.Error(stopErr))
		}

		h.cleanup(detach)

		return false, errors.Wrapf(errors.ErrCodeGatewayNotReady, err,
			"gateway did not accept connections on %s:%d", host, settings.Port)
	}

	h.mu.Lock()
	h.controller = controller
	h.started = true
	h.detach = detach
	h.mu.Unlock()

	h.logger.Info("Gateway is ready for connections")

	return true, nil
}

// StopIfStarted stops the gateway started by StartIfNeeded. Stop errors are logged.
func (h *Helper) StopIfStarted() {
	h.mu.Lock()
	controller := h.controller
	started := h.started
	detach := h.detach
	h.controller = nil
	h.started = false
	h.detach = nil
	h.mu.Unlock()

	if controller == nil {
		h.logger.Debug("No gateway to stop")

		return
	}

	if started {
		h.logger.Info("Stopping gateway...")

		if err := controller.Stop(); err != nil {
			h.logger.Warn("Error while stopping gateway", zap.Error(err))
		}
	}

	h.cleanup(detach)
}

func (h *Helper) buildSettings(port int) (Settings, error) {
	dir := ResolveGatewayDirectory(h.cfg.GatewayDirectory)
	if !utils.DirExists(dir) {
		return Settings{}, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"IB Gateway directory not found: '%s'. Set %s to your IB Gateway installation path.", dir, config.KeyGatewayDir)
	}

	username, err := required(config.KeyUsername, h.cfg.Username)
	if err != nil {
		return Settings{}, err
	}

	password, err := required(config.KeyPassword, h.cfg.Password)
	if err != nil {
		return Settings{}, err
	}

	gatewayVersion := strings.TrimSpace(h.cfg.GatewayVersion)
	if gatewayVersion == "" {
		gatewayVersion = version.Latest
	}

	mode := strings.ToLower(strings.TrimSpace(h.cfg.TradingMode))
	if mode == "" {
		mode = config.DefaultTradingMode
	}

	if mode != "paper" && mode != "live" {
		h.logger.Warn("Unrecognized trading mode, defaulting to paper", zap.String("trading_mode", mode))
		mode = config.DefaultTradingMode
	}

	return Settings{
		GatewayDirectory: dir,
		Version:          gatewayVersion,
		Username:         username,
		Password:         password,
		TradingMode:      mode,
		Port:             port,
		ExportLogs:       h.cfg.ExportLogs,
	}, nil
}

func required(key, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", errors.Newf(errors.ErrCodeMissingParameter, "Missing required configuration value '%s'.", key)
	}

	return value, nil
}

func (h *Helper) forwardEvents(controller Controller, detach <-chan struct{}) {
	events := controller.Events()

	h.forwarding.Add(1)

	go func() {
		defer h.forwarding.Done()

		for {
			select {
			case <-detach:
				return
			case event, ok := <-events:
				if !ok {
					return
				}

				h.logEvent(event)
			}
		}
	}()
}

func (h *Helper) logEvent(event Event) {
	switch event.Type {
	case EventOutput:
		h.logger.Debug("Gateway: " + event.Message)
	case EventError:
		h.logger.Warn("Gateway error: " + event.Message)
	case EventExited:
		h.logger.Info("Gateway exited", zap.Int("exit_code", event.ExitCode))
	case EventRestarted:
		h.logger.Info("Gateway triggered an automatic restart")
	}
}

func (h *Helper) cleanup(detach chan struct{}) {
	if detach != nil {
		close(detach)
	}

	h.forwarding.Wait()
}

// ResolveGatewayDirectory expands a leading ~ and falls back to the default install
// location ({home}/Jts, or C:\Jts on Windows).
func ResolveGatewayDirectory(configured string) string {
	configured = strings.TrimSpace(configured)
	if configured != "" {
		return expandHome(configured)
	}

	if runtime.GOOS == "windows" {
		return `C:\Jts`
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "Jts"
	}

	return filepath.Join(home, "Jts")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimLeft(path, `~/\`))
}

// IsLocalHost reports whether host names this machine.
func IsLocalHost(host string) bool {
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}

	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}

	addresses, err := net.LookupIP(host)
	if err != nil {
		return false
	}

	for _, address := range addresses {
		if address.IsLoopback() {
			return true
		}
	}

	return false
}

// IsListening dials host:port once with a short timeout.
func IsListening(ctx context.Context, host string, port int) bool {
	dialer := net.Dialer{Timeout: ProbeTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}

	_ = conn.Close()

	return true
}

// WaitForReady probes host:port every poll interval until it accepts connections,
// timeout elapses or ctx is done.
func WaitForReady(ctx context.Context, host string, port int, timeout, poll time.Duration) error {
	attempts := uint64(timeout / poll)
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(poll), attempts), ctx)

	err := backoff.Retry(func() error {
		if IsListening(ctx, host, port) {
			return nil
		}

		return fmt.Errorf("nothing listening on %s:%d", host, port)
	}, policy)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return fmt.Errorf("timed out waiting for gateway to accept connections on %s:%d: %w", host, port, err)
	}

	return nil
}
