package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema describes the body of a /parse answer. Every known field
// is optional; null is accepted and read as "not extracted".
const responseSchema = `{
  "type": "object",
  "properties": {
    "issuer":           {"type": ["string", "null"]},
    "card_number":      {"type": ["string", "null"]},
    "due_date":         {"type": ["string", "null"]},
    "total_due":        {"type": ["string", "null"]},
    "statement_period": {"type": ["string", "null"]},
    "error":            {"type": ["string", "null"]}
  }
}`

var compiledResponseSchema = mustCompileSchema("response.json", responseSchema)

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return compiled
}

// validateResponse checks that raw is JSON matching the response contract.
func validateResponse(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	if err := compiledResponseSchema.Validate(v); err != nil {
		return fmt.Errorf("response does not match contract: %w", err)
	}
	return nil
}
