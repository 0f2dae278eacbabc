// Package gateway starts and stops a local brokerage gateway process when a download asks
// for one. It never touches gateways on remote hosts or gateways it did not start.
package gateway

import (
	"context"
	"fmt"
)

// EventType identifies what a controller observed.
type EventType string

const (
	EventOutput    EventType = "output"
	EventError     EventType = "error"
	EventExited    EventType = "exited"
	EventRestarted EventType = "restarted"
)

// Event is emitted by a controller while the gateway process runs.
type Event struct {
	Type     EventType
	Message  string
	ExitCode int
}

// Controller manages the lifecycle of one gateway process.
type Controller interface {
	// Start launches the gateway without waiting for it to exit.
	Start(ctx context.Context) error
	// Stop terminates the gateway. Stopping a stopped gateway is a no-op.
	Stop() error
	IsRunning() bool
	// Events is closed once the process has exited and its output is drained.
	Events() <-chan Event
}

// Settings describes the gateway installation and login to launch with.
type Settings struct {
	GatewayDirectory string
	Version          string
	Username         string
	Password         string
	TradingMode      string
	Port             int
	ExportLogs       bool
}

// String never prints the password.
func (s Settings) String() string {
	return fmt.Sprintf("dir=%s version=%s mode=%s port=%d export_logs=%t",
		s.GatewayDirectory, s.Version, s.TradingMode, s.Port, s.ExportLogs)
}

// StartErrorKind classifies why a gateway could not be launched.
type StartErrorKind string

const (
	StartErrorProcessStartFailed  StartErrorKind = "ProcessStartFailed"
	StartErrorVersionNotInstalled StartErrorKind = "VersionNotInstalled"
	StartErrorJavaNotFound        StartErrorKind = "JavaNotFound"
	StartErrorLoginFailed         StartErrorKind = "LoginFailed"
	StartErrorExistingSession     StartErrorKind = "ExistingSessionDetected"
	StartErrorInitializationTimed StartErrorKind = "InitializationTimeout"
)

var startErrorHints = map[StartErrorKind]string{
	StartErrorProcessStartFailed:  "Ensure IB_GATEWAY_DIR points to a valid IB Gateway installation (run the installer if needed).",
	StartErrorVersionNotInstalled: "Install the requested IB Gateway version or set IB_VERSION to an installed build.",
	StartErrorJavaNotFound:        "Install a compatible Java Runtime Environment and ensure it is on the PATH.",
	StartErrorLoginFailed:         "Verify your IB credentials and complete any pending compliance tasks in Client Portal.",
	StartErrorExistingSession:     "Another IB Gateway/TWS session is active. Log out of other sessions or disable --use-ib-automater.",
	StartErrorInitializationTimed: "IB Gateway did not become ready. Check gateway logs for details.",
}

// StartError is returned by controllers that fail to launch the gateway.
type StartError struct {
	Kind    StartErrorKind
	Message string
	Cause   error
}

func (e *StartError) Error() string {
	message := fmt.Sprintf("gateway failed to start (%s). %s", e.Kind, e.Message)
	if hint, ok := startErrorHints[e.Kind]; ok {
		message += " " + hint
	}

	return message
}

func (e *StartError) Unwrap() error {
	return e.Cause
}
