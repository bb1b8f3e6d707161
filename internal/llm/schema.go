package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const decisionSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["decisions"],
  "properties": {
    "decisions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["symbol", "signal", "confidence", "justification"],
        "properties": {
          "symbol": {"type": "string", "minLength": 1},
          "signal": {"enum": ["buy_to_enter", "sell_to_enter", "hold", "close"]},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "justification": {"type": "string"},
          "stop_loss": {"type": "number"},
          "leverage": {"type": "number", "minimum": 0},
          "risk_usd": {"type": "number"},
          "profit_target": {"type": "number"},
          "quantity": {"type": "number", "minimum": 0},
          "invalidation_condition": {"type": "string"}
        }
      }
    }
  }
}`

var decisionSchema = mustCompileSchema(decisionSchemaJSON)

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("decisions.json", strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("add decision schema: %v", err))
	}
	schema, err := compiler.Compile("decisions.json")
	if err != nil {
		panic(fmt.Sprintf("compile decision schema: %v", err))
	}
	return schema
}

func validateDecisions(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return decisionSchema.Validate(doc)
}
