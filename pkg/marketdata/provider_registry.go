package marketdata

import (
	"sort"

	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata/provider"
	"github.com/rxtech-lab/lean-toolbox/pkg/utils"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name          string   `json:"name"`
	DisplayName   string   `json:"displayName"`
	Description   string   `json:"description"`
	RequiresAuth  bool     `json:"requiresAuth"`
	SecurityTypes []string `json:"securityTypes"`
}

// providerRegistry holds metadata about all supported providers.
var providerRegistry = map[provider.ProviderType]ProviderInfo{
	provider.ProviderPolygon: {
		Name:          string(provider.ProviderPolygon),
		DisplayName:   "Polygon.io",
		Description:   "US stock market data provider with historical OHLCV aggregates",
		RequiresAuth:  true,
		SecurityTypes: []string{"equity", "option", "index"},
	},
	provider.ProviderBinance: {
		Name:          string(provider.ProviderBinance),
		DisplayName:   "Binance",
		Description:   "Cryptocurrency exchange with extensive market data for crypto trading pairs",
		RequiresAuth:  false,
		SecurityTypes: []string{"crypto"},
	},
	provider.ProviderSynthetic: {
		Name:          string(provider.ProviderSynthetic),
		DisplayName:   "Synthetic",
		Description:   "Deterministic generated bars for offline testing",
		RequiresAuth:  false,
		SecurityTypes: []string{"equity", "forex", "crypto", "future", "option", "index", "cfd"},
	},
}

// GetSupportedProviders returns all supported provider names in alphabetical order.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	sort.Strings(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[provider.ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}

	return info, nil
}

// GetProviderConfigSchema returns the JSON schema for a provider's configuration.
func GetProviderConfigSchema(providerName string) (string, error) {
	config, err := emptyConfig(providerName)
	if err != nil {
		return "", err
	}

	return utils.GetSchemaFromConfig(config)
}

// GetProviderKeychainFields returns the configuration fields that hold secrets.
func GetProviderKeychainFields(providerName string) ([]string, error) {
	config, err := emptyConfig(providerName)
	if err != nil {
		return nil, err
	}

	return keychainFields(config), nil
}

// ParseProviderConfig parses a JSON configuration string for the given provider and returns
// the client configuration it describes.
func ParseProviderConfig(providerName string, jsonConfig string) (ClientConfig, error) {
	switch provider.ProviderType(providerName) {
	case provider.ProviderPolygon:
		config, err := ParsePolygonConfig(jsonConfig)
		if err != nil {
			return ClientConfig{}, err
		}

		return config.ToClientConfig(), nil
	case provider.ProviderBinance:
		config, err := ParseBinanceConfig(jsonConfig)
		if err != nil {
			return ClientConfig{}, err
		}

		return config.ToClientConfig(), nil
	case provider.ProviderSynthetic:
		config, err := ParseSyntheticConfig(jsonConfig)
		if err != nil {
			return ClientConfig{}, err
		}

		return config.ToClientConfig(), nil
	default:
		return ClientConfig{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}
}

func emptyConfig(providerName string) (any, error) {
	switch provider.ProviderType(providerName) {
	case provider.ProviderPolygon:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return &PolygonSourceConfig{}, nil
	case provider.ProviderBinance:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return &BinanceSourceConfig{}, nil
	case provider.ProviderSynthetic:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return &SyntheticSourceConfig{}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}
}
