package gateway

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/stretchr/testify/suite"
)

type ProcessControllerTestSuite struct {
	suite.Suite
	settings Settings
}

func TestProcessControllerSuite(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process tests rely on a POSIX shell")
	}

	suite.Run(t, new(ProcessControllerTestSuite))
}

func (suite *ProcessControllerTestSuite) SetupTest() {
	suite.settings = Settings{
		GatewayDirectory: suite.T().TempDir(),
		Version:          "latest",
		Username:         "trader",
		Password:         "hunter2",
		TradingMode:      "paper",
		Port:             4002,
	}
}

func drain(events <-chan Event) []Event {
	var collected []Event

	timeout := time.After(5 * time.Second)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return collected
			}

			collected = append(collected, event)
		case <-timeout:
			return collected
		}
	}
}

func (suite *ProcessControllerTestSuite) TestForwardsOutputAndExitCode() {
	controller := newCommandController(suite.settings, logger.NewNop(), "/bin/sh", "-c", "echo ready; echo oops 1>&2; exit 3")

	suite.Require().NoError(controller.Start(context.Background()))

	events := drain(controller.Events())

	suite.Contains(events, Event{Type: EventOutput, Message: "ready"})
	suite.Contains(events, Event{Type: EventError, Message: "oops"})
	suite.Require().NotEmpty(events)
	suite.Equal(Event{Type: EventExited, ExitCode: 3}, events[len(events)-1])
	suite.False(controller.IsRunning())
	suite.NoError(controller.Stop())
}

func (suite *ProcessControllerTestSuite) TestStopInterruptsProcess() {
	controller := newCommandController(suite.settings, logger.NewNop(), "sleep", "30")

	suite.Require().NoError(controller.Start(context.Background()))
	suite.True(controller.IsRunning())

	suite.NoError(controller.Stop())
	suite.False(controller.IsRunning())

	events := drain(controller.Events())
	suite.Require().NotEmpty(events)
	suite.Equal(EventExited, events[len(events)-1].Type)
}

func (suite *ProcessControllerTestSuite) TestStartTwiceFails() {
	controller := newCommandController(suite.settings, logger.NewNop(), "/bin/sh", "-c", "exit 0")

	suite.Require().NoError(controller.Start(context.Background()))

	err := controller.Start(context.Background())
	suite.Require().Error(err)

	var startErr *StartError
	suite.Require().ErrorAs(err, &startErr)
	suite.Equal(StartErrorProcessStartFailed, startErr.Kind)

	drain(controller.Events())
}

func (suite *ProcessControllerTestSuite) TestCanceledContext() {
	controller := newCommandController(suite.settings, logger.NewNop(), "/bin/sh", "-c", "exit 0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite.ErrorIs(controller.Start(ctx), context.Canceled)
	suite.False(controller.IsRunning())
}

func (suite *ProcessControllerTestSuite) TestMissingVersionDirectory() {
	controller := NewProcessController(suite.settings, logger.NewNop())

	err := controller.Start(context.Background())

	var startErr *StartError
	suite.Require().ErrorAs(err, &startErr)
	suite.Equal(StartErrorVersionNotInstalled, startErr.Kind)
	suite.Contains(err.Error(), "Install the requested IB Gateway version")
}

func (suite *ProcessControllerTestSuite) TestMissingLauncher() {
	suite.Require().NoError(os.MkdirAll(filepath.Join(suite.settings.GatewayDirectory, "ibgateway", "10.30"), 0o755))

	err := NewProcessController(suite.settings, logger.NewNop()).Start(context.Background())

	var startErr *StartError
	suite.Require().ErrorAs(err, &startErr)
	suite.Equal(StartErrorProcessStartFailed, startErr.Kind)
	suite.Contains(startErr.Message, "gateway launcher not found")
}

func (suite *ProcessControllerTestSuite) TestLaunchesResolvedVersionWithEnvironment() {
	for _, v := range []string{"10.19", "10.30"} {
		dir := filepath.Join(suite.settings.GatewayDirectory, "ibgateway", v)
		suite.Require().NoError(os.MkdirAll(dir, 0o755))

		script := "#!/bin/sh\necho \"" + v + " $IB_TRADING_MODE $GATEWAY_PORT $IB_USERNAME\"\n"
		suite.Require().NoError(os.WriteFile(filepath.Join(dir, "ibgateway"), []byte(script), 0o755))
	}

	controller := NewProcessController(suite.settings, logger.NewNop())
	suite.Require().NoError(controller.Start(context.Background()))

	events := drain(controller.Events())

	suite.Contains(events, Event{Type: EventOutput, Message: "10.30 paper 4002 trader"})
	suite.Equal(Event{Type: EventExited, ExitCode: 0}, events[len(events)-1])
}

func (suite *ProcessControllerTestSuite) TestSettingsStringHidesPassword() {
	suite.NotContains(suite.settings.String(), "hunter2")
	suite.Contains(suite.settings.String(), "port=4002")
}
