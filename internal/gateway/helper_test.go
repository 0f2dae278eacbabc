package gateway_test

import (
	"context"
	stderrors "errors"
	"net"
	"testing"
	"time"

	"github.com/rxtech-lab/lean-toolbox/internal/config"
	"github.com/rxtech-lab/lean-toolbox/internal/gateway"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/mocks"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type HelperTestSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	controller *mocks.MockController
	events     chan gateway.Event
	cfg        config.Config
	env        map[string]string
	probed     bool
	listening  bool
	waitErr    error
	settings   []gateway.Settings
}

func TestHelperSuite(t *testing.T) {
	suite.Run(t, new(HelperTestSuite))
}

func (suite *HelperTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.controller = mocks.NewMockController(suite.ctrl)
	suite.events = make(chan gateway.Event, 4)
	suite.env = map[string]string{}
	suite.probed = false
	suite.listening = false
	suite.waitErr = nil
	suite.settings = nil

	suite.cfg = config.Default()
	suite.cfg.GatewayDirectory = suite.T().TempDir()
	suite.cfg.Username = "trader"
	suite.cfg.Password = "hunter2"
	suite.cfg.Account = "DU123"
}

func (suite *HelperTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *HelperTestSuite) helper() *gateway.Helper {
	return gateway.NewHelper(suite.cfg, logger.NewNop(),
		gateway.WithLookupEnv(func(key string) (string, bool) {
			value, ok := suite.env[key]

			return value, ok
		}),
		gateway.WithProbe(func(_ context.Context, _ string, _ int) bool {
			suite.probed = true

			return suite.listening
		}),
		gateway.WithReadyWaiter(func(_ context.Context, _ string, _ int) error {
			return suite.waitErr
		}),
		gateway.WithControllerFactory(func(settings gateway.Settings) gateway.Controller {
			suite.settings = append(suite.settings, settings)

			return suite.controller
		}),
	)
}

func (suite *HelperTestSuite) expectEvents() {
	suite.controller.EXPECT().Events().Return((<-chan gateway.Event)(suite.events))
}

func (suite *HelperTestSuite) TestNotRequested() {
	started, err := suite.helper().StartIfNeeded(context.Background(), "127.0.0.1", 7497, false)

	suite.NoError(err)
	suite.False(started)
	suite.False(suite.probed)
}

func (suite *HelperTestSuite) TestCIEnvironmentDisables() {
	for _, name := range []string{"CI", "GITHUB_ACTIONS", "DRONE"} {
		suite.Run(name, func() {
			suite.env = map[string]string{name: "true"}

			started, err := suite.helper().StartIfNeeded(context.Background(), "127.0.0.1", 7497, true)

			suite.NoError(err)
			suite.False(started)
			suite.Empty(suite.settings)
		})
	}
}

func (suite *HelperTestSuite) TestEmptyCIVariableIsIgnored() {
	suite.env = map[string]string{"CI": ""}

	suite.True(suite.helper().ShouldUse(true))
	suite.False(suite.helper().ShouldUse(false))
}

func (suite *HelperTestSuite) TestRemoteHostIsSkipped() {
	started, err := suite.helper().StartIfNeeded(context.Background(), "10.20.30.40", 7497, true)

	suite.NoError(err)
	suite.False(started)
	suite.False(suite.probed)
}

func (suite *HelperTestSuite) TestAlreadyListeningIsSkipped() {
	suite.listening = true

	started, err := suite.helper().StartIfNeeded(context.Background(), "localhost", 7497, true)

	suite.NoError(err)
	suite.False(started)
	suite.True(suite.probed)
	suite.Empty(suite.settings)
}

func (suite *HelperTestSuite) TestStartAndStop() {
	suite.cfg.ExportLogs = true
	suite.cfg.GatewayVersion = ""

	suite.expectEvents()
	suite.controller.EXPECT().Start(gomock.Any()).Return(nil)
	suite.controller.EXPECT().Stop().Return(nil)

	helper := suite.helper()

	started, err := helper.StartIfNeeded(context.Background(), "127.0.0.1", 4002, true)
	suite.Require().NoError(err)
	suite.True(started)

	suite.events <- gateway.Event{Type: gateway.EventOutput, Message: "login ok"}

	suite.Require().Len(suite.settings, 1)
	suite.Equal(gateway.Settings{
		GatewayDirectory: suite.cfg.GatewayDirectory,
		Version:          "latest",
		Username:         "trader",
		Password:         "hunter2",
		TradingMode:      "paper",
		Port:             4002,
		ExportLogs:       true,
	}, suite.settings[0])

	helper.StopIfStarted()
	// A second stop has nothing left to stop.
	helper.StopIfStarted()
}

func (suite *HelperTestSuite) TestUnknownTradingModeFallsBackToPaper() {
	suite.cfg.TradingMode = " Margin "

	suite.expectEvents()
	suite.controller.EXPECT().Start(gomock.Any()).Return(nil)

	started, err := suite.helper().StartIfNeeded(context.Background(), "::1", 7497, true)

	suite.Require().NoError(err)
	suite.True(started)
	suite.Equal("paper", suite.settings[0].TradingMode)
}

func (suite *HelperTestSuite) TestLiveTradingModeIsKept() {
	suite.cfg.TradingMode = "LIVE"

	suite.expectEvents()
	suite.controller.EXPECT().Start(gomock.Any()).Return(nil)

	_, err := suite.helper().StartIfNeeded(context.Background(), "127.0.0.1", 7497, true)

	suite.Require().NoError(err)
	suite.Equal("live", suite.settings[0].TradingMode)
}

func (suite *HelperTestSuite) TestStartFailureCarriesHint() {
	suite.expectEvents()
	suite.controller.EXPECT().Start(gomock.Any()).Return(&gateway.StartError{
		Kind:    gateway.StartErrorVersionNotInstalled,
		Message: "gateway version '10.19' is not installed",
	})

	started, err := suite.helper().StartIfNeeded(context.Background(), "127.0.0.1", 7497, true)

	suite.False(started)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeGatewayStartFailed, errors.GetCode(err))
	suite.Contains(err.Error(), "VersionNotInstalled")
	suite.Contains(err.Error(), "set IB_VERSION to an installed build")

	var startErr *gateway.StartError
	suite.True(errors.As(err, &startErr))
}

func (suite *HelperTestSuite) TestNotReadyStopsGateway() {
	suite.waitErr = stderrors.New("timed out")

	suite.expectEvents()
	suite.controller.EXPECT().Start(gomock.Any()).Return(nil)
	suite.controller.EXPECT().Stop().Return(nil)

	helper := suite.helper()

	started, err := helper.StartIfNeeded(context.Background(), "127.0.0.1", 7497, true)

	suite.False(started)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeGatewayNotReady, errors.GetCode(err))

	// Nothing was kept, so nothing more is stopped.
	helper.StopIfStarted()
}

func (suite *HelperTestSuite) TestMissingGatewayDirectory() {
	suite.cfg.GatewayDirectory = suite.cfg.GatewayDirectory + "/missing"

	_, err := suite.helper().StartIfNeeded(context.Background(), "127.0.0.1", 7497, true)

	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
	suite.Contains(err.Error(), "IB Gateway directory not found")
	suite.Empty(suite.settings)
}

func (suite *HelperTestSuite) TestMissingCredentials() {
	tests := []struct {
		name     string
		username string
		password string
		key      string
	}{
		{name: "username", username: " ", password: "secret", key: "IB_USERNAME"},
		{name: "password", username: "trader", password: "", key: "IB_PASSWORD"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.cfg.Username = tt.username
			suite.cfg.Password = tt.password

			_, err := suite.helper().StartIfNeeded(context.Background(), "127.0.0.1", 7497, true)

			suite.Require().Error(err)
			suite.Equal(errors.ErrCodeMissingParameter, errors.GetCode(err))
			suite.Contains(err.Error(), "Missing required configuration value '"+tt.key+"'.")
		})
	}
}

func TestIsLocalHost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{host: "localhost", expected: true},
		{host: " LOCALHOST ", expected: true},
		{host: "127.0.0.1", expected: true},
		{host: "::1", expected: true},
		{host: "127.0.0.2", expected: true},
		{host: "", expected: false},
		{host: "10.1.2.3", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := gateway.IsLocalHost(tt.host); got != tt.expected {
				t.Errorf("IsLocalHost(%q) = %v, want %v", tt.host, got, tt.expected)
			}
		})
	}
}

type ProbeTestSuite struct {
	suite.Suite
}

func TestProbeSuite(t *testing.T) {
	suite.Run(t, new(ProbeTestSuite))
}

func (suite *ProbeTestSuite) listen() (net.Listener, int) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	suite.Require().NoError(err)

	return listener, listener.Addr().(*net.TCPAddr).Port
}

func (suite *ProbeTestSuite) TestIsListening() {
	listener, port := suite.listen()

	suite.True(gateway.IsListening(context.Background(), "127.0.0.1", port))

	suite.Require().NoError(listener.Close())
	suite.False(gateway.IsListening(context.Background(), "127.0.0.1", port))
}

func (suite *ProbeTestSuite) TestWaitForReady() {
	listener, port := suite.listen()
	defer listener.Close()

	err := gateway.WaitForReady(context.Background(), "127.0.0.1", port, time.Second, 10*time.Millisecond)
	suite.NoError(err)
}

func (suite *ProbeTestSuite) TestWaitForReadyTimesOut() {
	listener, port := suite.listen()
	suite.Require().NoError(listener.Close())

	err := gateway.WaitForReady(context.Background(), "127.0.0.1", port, 50*time.Millisecond, 10*time.Millisecond)
	suite.Require().Error(err)
	suite.Contains(err.Error(), "timed out waiting for gateway")
}

func (suite *ProbeTestSuite) TestWaitForReadyHonorsContext() {
	listener, port := suite.listen()
	suite.Require().NoError(listener.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gateway.WaitForReady(ctx, "127.0.0.1", port, time.Minute, 10*time.Millisecond)
	suite.ErrorIs(err, context.Canceled)
}

func (suite *ProbeTestSuite) TestResolveGatewayDirectory() {
	home := suite.T().TempDir()
	suite.T().Setenv("HOME", home)

	suite.Equal("/opt/ibgw", gateway.ResolveGatewayDirectory(" /opt/ibgw "))
	suite.Equal(home+"/Jts", gateway.ResolveGatewayDirectory(""))
	suite.Equal(home+"/gateways/ib", gateway.ResolveGatewayDirectory("~/gateways/ib"))
}
