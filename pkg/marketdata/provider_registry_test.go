package marketdata

import (
	"encoding/json"
	"testing"

	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata/provider"
	"github.com/stretchr/testify/suite"
)

type ProviderRegistryTestSuite struct {
	suite.Suite
}

func TestProviderRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(ProviderRegistryTestSuite))
}

func (suite *ProviderRegistryTestSuite) TestGetSupportedProviders() {
	suite.Equal([]string{"binance", "polygon", "synthetic"}, GetSupportedProviders())
}

func (suite *ProviderRegistryTestSuite) TestGetProviderInfo() {
	tests := []struct {
		name         string
		displayName  string
		requiresAuth bool
	}{
		{name: "polygon", displayName: "Polygon.io", requiresAuth: true},
		{name: "binance", displayName: "Binance", requiresAuth: false},
		{name: "synthetic", displayName: "Synthetic", requiresAuth: false},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			info, err := GetProviderInfo(tc.name)
			suite.Require().NoError(err)
			suite.Equal(tc.name, info.Name)
			suite.Equal(tc.displayName, info.DisplayName)
			suite.Equal(tc.requiresAuth, info.RequiresAuth)
			suite.NotEmpty(info.Description)
			suite.NotEmpty(info.SecurityTypes)
		})
	}
}

func (suite *ProviderRegistryTestSuite) TestGetProviderInfo_InvalidProvider() {
	_, err := GetProviderInfo("invalid")

	suite.Error(err)
	suite.Contains(err.Error(), "unsupported provider")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))
}

func (suite *ProviderRegistryTestSuite) TestGetProviderConfigSchema() {
	schema, err := GetProviderConfigSchema("polygon")
	suite.Require().NoError(err)

	var decoded map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(schema), &decoded))

	properties, ok := decoded["properties"].(map[string]any)
	suite.Require().True(ok)
	suite.Contains(properties, "apiKey")
	suite.Contains(properties, "requestsPerMinute")

	_, err = GetProviderConfigSchema("invalid")
	suite.Error(err)
}

func (suite *ProviderRegistryTestSuite) TestGetProviderKeychainFields() {
	fields, err := GetProviderKeychainFields("polygon")
	suite.Require().NoError(err)
	suite.Equal([]string{"apiKey"}, fields)

	fields, err = GetProviderKeychainFields("binance")
	suite.Require().NoError(err)
	suite.Empty(fields)
}

func (suite *ProviderRegistryTestSuite) TestParseProviderConfig() {
	config, err := ParseProviderConfig("polygon", `{"apiKey": "pk", "requestsPerMinute": 5}`)
	suite.Require().NoError(err)
	suite.Equal(provider.ProviderPolygon, config.ProviderType)
	suite.Equal("pk", config.PolygonApiKey)
	suite.Equal(5, config.RequestsPerMinute)

	_, err = ParseProviderConfig("polygon", `{"requestsPerMinute": 5}`)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration), "api key is required")

	_, err = ParseProviderConfig("binance", `{"chunkDays": -1}`)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = ParseProviderConfig("synthetic", `not json`)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	config, err = ParseProviderConfig("synthetic", `{}`)
	suite.Require().NoError(err)
	suite.Equal(provider.ProviderSynthetic, config.ProviderType)

	_, err = ParseProviderConfig("yahoo", `{}`)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))
}
