package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/utils"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// Loader reads configuration files and applies environment overrides.
type Loader struct {
	logger    *logger.Logger
	lookupEnv LookupEnv
	secrets   LookupEnv
}

func NewLoader(log *logger.Logger) *Loader {
	return NewLoaderWithEnv(log, os.LookupEnv)
}

// NewLoaderWithEnv uses lookup instead of the process environment.
func NewLoaderWithEnv(log *logger.Logger, lookup LookupEnv) *Loader {
	return &Loader{
		logger:    log,
		lookupEnv: lookup,
		secrets:   nil,
	}
}

// WithSecrets fills secrets still empty after file and environment from lookup,
// typically a credential store.
func (l *Loader) WithSecrets(lookup LookupEnv) *Loader {
	l.secrets = lookup

	return l
}

// Schema returns the JSON schema configuration files must satisfy.
func Schema() (string, error) {
	return utils.GetSchemaFromConfig(&Config{})
}

// Load builds a Config from defaults, the optional file at path (JSON, or YAML for
// .yaml/.yml) and environment variables, in increasing precedence. When
// requireCredentials is set the gateway credentials must all be present.
func (l *Loader) Load(path string, requireCredentials bool) (Config, error) {
	cfg := Default()

	if path != "" {
		fileCfg, err := l.loadFile(path)
		if err != nil {
			return Config{}, err
		}

		cfg = merge(cfg, fileCfg)

		l.logger.Debug("Loaded configuration from file", zap.String("path", path))
	}

	if err := l.applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	l.applySecrets(&cfg)

	if problems := cfg.Validate(); len(problems) > 0 {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", errors.NewValidationError(problems))
	}

	if requireCredentials {
		if missing := cfg.MissingKeys(); len(missing) > 0 {
			return Config{}, errors.Newf(errors.ErrCodeInvalidConfiguration, "Missing required configuration keys: %s", strings.Join(missing, ", "))
		}
	}

	l.logger.Info("Configuration loaded and validated successfully")
	l.logger.Debug("Effective configuration", zap.String("config", cfg.Redacted()))

	return cfg, nil
}

func (l *Loader) loadFile(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, errors.Newf(errors.ErrCodeInvalidConfiguration, "config file not found: %s", path)
	}

	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeIOFailure, err, "failed to read config file %s", path)
	}

	var document map[string]any

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &document)
	default:
		err = json.Unmarshal(content, &document)
	}

	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid configuration file %s", path)
	}

	if document == nil {
		document = map[string]any{}
	}

	schema, err := Schema()
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeUnknown, "failed to build configuration schema", err)
	}

	problems, err := utils.ValidateAgainstSchema(schema, document)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to validate configuration file", err)
	}

	if len(problems) > 0 {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, errors.NewValidationError(problems), "configuration file %s does not match the schema", path)
	}

	normalized, err := json.Marshal(document)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to normalize configuration", err)
	}

	var cfg Config
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to decode configuration", err)
	}

	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	fields := map[string]*string{
		KeyUsername:      &cfg.Username,
		KeyPassword:      &cfg.Password,
		KeyAccount:       &cfg.Account,
		KeyGatewayHost:   &cfg.GatewayHost,
		KeyGatewayDir:    &cfg.GatewayDirectory,
		KeyGatewayVer:    &cfg.GatewayVersion,
		KeyTradingMode:   &cfg.TradingMode,
		KeyDataDir:       &cfg.DataDirectory,
		KeyLogLevel:      &cfg.LogLevel,
		KeyPolygonAPIKey: &cfg.PolygonAPIKey,
	}

	for key, target := range fields {
		if value, ok := l.env(key); ok {
			*target = value
		}
	}

	if value, ok := l.env(KeyGatewayPort); ok {
		port, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "%s must be a number", KeyGatewayPort)
		}

		cfg.GatewayPort = port
	}

	if value, ok := l.env(KeyExportLogs); ok {
		export, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "%s must be true or false", KeyExportLogs)
		}

		cfg.ExportLogs = export
	}

	return nil
}

func (l *Loader) applySecrets(cfg *Config) {
	if l.secrets == nil {
		return
	}

	fields := map[string]*string{
		KeyPassword:      &cfg.Password,
		KeyPolygonAPIKey: &cfg.PolygonAPIKey,
	}

	for key, target := range fields {
		if strings.TrimSpace(*target) != "" {
			continue
		}

		if value, ok := l.secrets(key); ok && value != "" {
			*target = value

			l.logger.Debug("Loaded secret from credential store", zap.String("key", key))
		}
	}
}

// env returns a trimmed, non-empty environment value.
func (l *Loader) env(key string) (string, bool) {
	value, ok := l.lookupEnv(key)
	if !ok {
		return "", false
	}

	value = strings.TrimSpace(value)

	return value, value != ""
}

// merge overlays the non-zero fields of override onto base.
func merge(base, override Config) Config {
	result := base

	setString := func(target *string, value string) {
		if strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}

	setString(&result.Username, override.Username)
	setString(&result.Password, override.Password)
	setString(&result.Account, override.Account)
	setString(&result.DataDirectory, override.DataDirectory)
	setString(&result.GatewayHost, override.GatewayHost)
	setString(&result.GatewayDirectory, override.GatewayDirectory)
	setString(&result.GatewayVersion, override.GatewayVersion)
	setString(&result.TradingMode, override.TradingMode)
	setString(&result.LogLevel, override.LogLevel)
	setString(&result.PolygonAPIKey, override.PolygonAPIKey)

	if override.GatewayPort != 0 {
		result.GatewayPort = override.GatewayPort
	}

	if override.ExportLogs {
		result.ExportLogs = true
	}

	return result
}
