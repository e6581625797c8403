package catalog

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const productSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "price", "inStock"],
  "properties": {
    "id":           {"type": "string", "minLength": 1, "maxLength": 128},
    "name":         {"type": "string", "minLength": 1, "maxLength": 200},
    "description":  {"type": "string", "maxLength": 5000},
    "price":        {"type": "number", "exclusiveMinimum": 0},
    "image":        {"type": "string", "maxLength": 2048},
    "mainCategory": {"type": "string", "maxLength": 100},
    "skillLevel":   {"type": "string", "enum": ["", "beginner", "intermediate", "advanced"]},
    "rating":       {"type": "number", "minimum": 0, "maximum": 5},
    "inStock":      {"type": "boolean"}
  }
}`

var productSchemaLoader = gojsonschema.NewStringLoader(productSchema)

// InvalidProductError lists every schema violation in a product body.
type InvalidProductError struct {
	Problems []string
}

func (e *InvalidProductError) Error() string {
	return "invalid product: " + strings.Join(e.Problems, "; ")
}

func validateProductJSON(body []byte) error {
	result, err := gojsonschema.Validate(productSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &InvalidProductError{Problems: []string{"body is not valid JSON"}}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &InvalidProductError{Problems: problems}
}
