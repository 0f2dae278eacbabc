package marketdata

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata/provider"
)

// BaseSourceConfig contains settings shared by every source.
type BaseSourceConfig struct {
	RequestsPerMinute int `json:"requestsPerMinute,omitempty" jsonschema:"title=Requests per minute,description=Throttle source requests. Zero disables throttling,minimum=0" validate:"min=0"`
	ChunkDays         int `json:"chunkDays,omitempty" jsonschema:"title=Chunk days,description=Maximum days per source request. Zero uses the recommended maximum,minimum=0" validate:"min=0"`
}

// PolygonSourceConfig contains configuration for downloading from Polygon.io.
type PolygonSourceConfig struct {
	BaseSourceConfig

	ApiKey string `json:"apiKey" jsonschema:"title=API Key,description=Polygon.io API key for authentication" keychain:"true" validate:"required"`
}

// BinanceSourceConfig contains configuration for downloading from Binance.
// Binance public market data API does not require authentication.
type BinanceSourceConfig struct {
	BaseSourceConfig
}

// SyntheticSourceConfig configures the offline generator.
type SyntheticSourceConfig struct {
	BaseSourceConfig
}

func (c *BaseSourceConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid source config", err)
	}

	return nil
}

func (c *PolygonSourceConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid polygon config", err)
	}

	return c.BaseSourceConfig.Validate()
}

func (c *BaseSourceConfig) toClientConfig(providerType provider.ProviderType, apiKey string) ClientConfig {
	return ClientConfig{
		ProviderType:      providerType,
		PolygonApiKey:     apiKey,
		RequestsPerMinute: c.RequestsPerMinute,
		ChunkDays:         c.ChunkDays,
	}
}

func (c *PolygonSourceConfig) ToClientConfig() ClientConfig {
	return c.toClientConfig(provider.ProviderPolygon, c.ApiKey)
}

func (c *BinanceSourceConfig) ToClientConfig() ClientConfig {
	return c.toClientConfig(provider.ProviderBinance, "")
}

func (c *SyntheticSourceConfig) ToClientConfig() ClientConfig {
	return c.toClientConfig(provider.ProviderSynthetic, "")
}

// ParsePolygonConfig parses JSON into a PolygonSourceConfig.
func ParsePolygonConfig(jsonConfig string) (*PolygonSourceConfig, error) {
	return parseConfig[PolygonSourceConfig](jsonConfig, (*PolygonSourceConfig).Validate)
}

// ParseBinanceConfig parses JSON into a BinanceSourceConfig.
func ParseBinanceConfig(jsonConfig string) (*BinanceSourceConfig, error) {
	return parseConfig[BinanceSourceConfig](jsonConfig, func(c *BinanceSourceConfig) error {
		return c.BaseSourceConfig.Validate()
	})
}

// ParseSyntheticConfig parses JSON into a SyntheticSourceConfig.
func ParseSyntheticConfig(jsonConfig string) (*SyntheticSourceConfig, error) {
	return parseConfig[SyntheticSourceConfig](jsonConfig, func(c *SyntheticSourceConfig) error {
		return c.BaseSourceConfig.Validate()
	})
}

func parseConfig[T any](jsonConfig string, validate func(*T) error) (*T, error) {
	var config T
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse JSON config", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// keychainFields lists the JSON names of fields tagged keychain:"true". Those values belong
// in the credential store rather than in plain config files.
func keychainFields(config any) []string {
	var fields []string

	collectKeychainFields(reflect.TypeOf(config), &fields)

	return fields
}

func collectKeychainFields(t reflect.Type, fields *[]string) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return
	}

	for i := range t.NumField() {
		field := t.Field(i)

		if field.Anonymous {
			collectKeychainFields(field.Type, fields)

			continue
		}

		if field.Tag.Get("keychain") != "true" {
			continue
		}

		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" {
			name = field.Name
		}

		*fields = append(*fields, name)
	}
}
