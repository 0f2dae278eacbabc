package main

import (
	"context"
	"io"
	"os"

	"github.com/rxtech-lab/lean-toolbox/internal/config"
	"github.com/rxtech-lab/lean-toolbox/internal/credentials"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// environment is what every command needs before doing real work.
type environment struct {
	cfg    config.Config
	logger *logger.Logger
	store  credentials.Store
}

// setup builds the run logger, opens the credential store and loads the configuration
// with stored secrets filling what the file and environment left empty.
func setup(ctx context.Context, cmd *cli.Command, requireCredentials bool) (*environment, error) {
	log, err := newRunLogger(cmd)
	if err != nil {
		return nil, err
	}

	var store credentials.Store

	fileStore, err := openStore(cmd)
	if err != nil {
		log.Warn("Credential store unavailable, continuing without stored secrets", zap.Error(err))
	} else {
		store = fileStore
	}

	loader := config.NewLoader(log)
	if store != nil {
		loader = loader.WithSecrets(func(key string) (string, bool) {
			secret, err := store.Load(ctx, key)
			if err != nil {
				log.Warn("Failed to read stored secret", zap.String("key", key), zap.Error(err))

				return "", false
			}

			value, err := secret.Take()

			return value, err == nil
		})
	}

	cfg, err := loader.Load(cmd.String("config"), requireCredentials)
	if err != nil {
		return nil, err
	}

	return &environment{
		cfg:    cfg,
		logger: log,
		store:  store,
	}, nil
}

// newRunLogger uses --log-level when given, LOG_LEVEL otherwise, and tags every entry
// with a fresh correlation id.
func newRunLogger(cmd *cli.Command) (*logger.Logger, error) {
	level := cmd.String("log-level")
	if !cmd.IsSet("log-level") {
		if value, ok := os.LookupEnv(config.KeyLogLevel); ok && value != "" {
			level = value
		}
	}

	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return nil, err
	}

	return log.WithCorrelationID(logger.NewCorrelationID()), nil
}

func openStore(cmd *cli.Command) (*credentials.FileStore, error) {
	dir := cmd.String("credentials-dir")
	if dir == "" {
		defaultDir, err := credentials.DefaultDir()
		if err != nil {
			return nil, err
		}

		dir = defaultDir
	}

	return credentials.NewFileStore(dir)
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}

	return os.Stderr
}
