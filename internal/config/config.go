// Package config loads the toolbox configuration from an optional JSON or YAML file
// overlaid with environment variables. File keys and environment variable names are
// the same, so a file written for one deployment can be replaced by env vars in another.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	KeyUsername      = "IB_USERNAME"
	KeyPassword      = "IB_PASSWORD"
	KeyAccount       = "IB_ACCOUNT"
	KeyGatewayHost   = "GATEWAY_HOST"
	KeyGatewayPort   = "GATEWAY_PORT"
	KeyGatewayDir    = "IB_GATEWAY_DIR"
	KeyGatewayVer    = "IB_VERSION"
	KeyTradingMode   = "IB_TRADING_MODE"
	KeyExportLogs    = "IB_AUTOMATER_EXPORT_LOGS"
	KeyDataDir       = "DATA_DIR"
	KeyLogLevel      = "LOG_LEVEL"
	KeyPolygonAPIKey = "POLYGON_API_KEY"

	DefaultGatewayHost    = "127.0.0.1"
	DefaultGatewayPort    = 7497
	DefaultGatewayVersion = "latest"
	DefaultTradingMode    = "paper"
	DefaultLogLevel       = "info"

	redacted = "***"
)

// RequiredKeys must be present when brokerage credentials are needed.
var RequiredKeys = []string{KeyUsername, KeyPassword, KeyAccount}

var secretKeys = map[string]bool{
	KeyPassword:      true,
	KeyPolygonAPIKey: true,
}

var brokerageFields = []string{"Username", "Account", "DataDirectory", "GatewayPort"}

var fieldMessages = map[string]string{
	"Username":      "Username (IB_USERNAME) is required.",
	"Account":       "Account (IB_ACCOUNT) is required.",
	"DataDirectory": "DataDirectory (DATA_DIR) is required.",
	"GatewayPort":   "GatewayPort must be between 1 and 65535.",
	"TradingMode":   "TradingMode (IB_TRADING_MODE) must be paper or live.",
	"LogLevel":      "LogLevel (LOG_LEVEL) must be one of trace, debug, info, warn, warning, error.",
}

// Config holds brokerage gateway settings, data locations and provider keys.
type Config struct {
	Username         string `json:"IB_USERNAME,omitempty" jsonschema:"title=Gateway username" validate:"required"`
	Password         string `json:"IB_PASSWORD,omitempty" jsonschema:"title=Gateway password"`
	Account          string `json:"IB_ACCOUNT,omitempty" jsonschema:"title=Brokerage account id" validate:"required"`
	DataDirectory    string `json:"DATA_DIR,omitempty" jsonschema:"title=LEAN data directory" validate:"required"`
	GatewayHost      string `json:"GATEWAY_HOST,omitempty" jsonschema:"title=Gateway host,default=127.0.0.1"`
	GatewayPort      int    `json:"GATEWAY_PORT,omitempty" jsonschema:"title=Gateway port,default=7497,minimum=1,maximum=65535" validate:"min=1,max=65535"`
	GatewayDirectory string `json:"IB_GATEWAY_DIR,omitempty" jsonschema:"title=Gateway installation directory"`
	GatewayVersion   string `json:"IB_VERSION,omitempty" jsonschema:"title=Gateway version,default=latest"`
	TradingMode      string `json:"IB_TRADING_MODE,omitempty" jsonschema:"title=Trading mode,enum=paper,enum=live,default=paper" validate:"oneof=paper live"`
	ExportLogs       bool   `json:"IB_AUTOMATER_EXPORT_LOGS,omitempty" jsonschema:"title=Export gateway logs"`
	LogLevel         string `json:"LOG_LEVEL,omitempty" jsonschema:"title=Log level,enum=trace,enum=debug,enum=info,enum=warn,enum=warning,enum=error,default=info" validate:"oneof=trace debug info warn warning error"`
	PolygonAPIKey    string `json:"POLYGON_API_KEY,omitempty" jsonschema:"title=Polygon API key"`
}

// Default returns the configuration used before any file or environment is applied.
func Default() Config {
	return Config{
		Username:         "",
		Password:         "",
		Account:          "",
		DataDirectory:    "",
		GatewayHost:      DefaultGatewayHost,
		GatewayPort:      DefaultGatewayPort,
		GatewayDirectory: "",
		GatewayVersion:   DefaultGatewayVersion,
		TradingMode:      DefaultTradingMode,
		ExportLogs:       false,
		LogLevel:         DefaultLogLevel,
		PolygonAPIKey:    "",
	}
}

// Validate checks the settings every command relies on.
func (c Config) Validate() []string {
	return messagesFor(validator.New().StructExcept(c, "Username", "Account", "DataDirectory"))
}

// ValidateBrokerage checks what the gateway needs: username, account, data directory
// and a usable port.
func (c Config) ValidateBrokerage() []string {
	return messagesFor(validator.New().StructPartial(c, brokerageFields...))
}

// MissingKeys lists the required credential keys that have no value.
func (c Config) MissingKeys() []string {
	values := c.ToMap()

	var missing []string

	for _, key := range RequiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}

	return missing
}

// ToMap renders the configuration as environment variables.
func (c Config) ToMap() map[string]string {
	return map[string]string{
		KeyUsername:      c.Username,
		KeyPassword:      c.Password,
		KeyAccount:       c.Account,
		KeyGatewayHost:   c.GatewayHost,
		KeyGatewayPort:   strconv.Itoa(c.GatewayPort),
		KeyGatewayDir:    c.GatewayDirectory,
		KeyGatewayVer:    c.GatewayVersion,
		KeyTradingMode:   c.TradingMode,
		KeyExportLogs:    strconv.FormatBool(c.ExportLogs),
		KeyDataDir:       c.DataDirectory,
		KeyLogLevel:      c.LogLevel,
		KeyPolygonAPIKey: c.PolygonAPIKey,
	}
}

// Redacted renders "KEY=value" pairs sorted by key with secrets masked.
func (c Config) Redacted() string {
	values := c.ToMap()
	keys := make([]string, 0, len(values))

	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		value := values[key]
		if secretKeys[key] && value != "" {
			value = redacted
		}

		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}

	return strings.Join(pairs, ", ")
}

func messagesFor(err error) []string {
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		message, ok := fieldMessages[fieldError.Field()]
		if !ok {
			message = fieldError.Error()
		}

		messages = append(messages, message)
	}

	return messages
}
