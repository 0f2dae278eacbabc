package utils

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// GetSchemaFromConfig reflects a JSON schema for config with every definition inlined.
func GetSchemaFromConfig(config any) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(config)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}

// ValidateAgainstSchema checks a decoded document (maps, slices and scalars) against
// schema and returns one message per violation. An empty result means valid.
func ValidateAgainstSchema(schema string, document any) ([]string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return nil, err
	}

	if result.Valid() {
		return nil, nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		messages = append(messages, resultErr.String())
	}

	return messages, nil
}
