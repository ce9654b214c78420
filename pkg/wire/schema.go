package wire

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// envelopeSchemaJSON is the normative envelope shape. Decode already
// enforces the structural rules the core relies on; the schema exists
// for peers running in strict mode, where unknown fields and loosely
// typed values are rejected outright.
const envelopeSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "additionalProperties": false,
  "properties": {
    "type": {
      "enum": ["note", "noteAck", "request", "requestAck",
               "response", "responseAck", "ping", "pong", "error"]
    },
    "stamp":       {"type": "string", "minLength": 1},
    "data":        {},
    "sendAck":     {"type": "boolean"},
    "failureCode": {"type": "number"}
  },
  "allOf": [
    {
      "if": {
        "properties": {
          "type": {"enum": ["note", "noteAck", "request", "requestAck",
                            "response", "responseAck"]}
        }
      },
      "then": {"required": ["type", "stamp"]}
    },
    {
      "if": {
        "properties": {"type": {"enum": ["ping", "pong"]}}
      },
      "then": {
        "required": ["type", "data"],
        "properties": {"data": {"type": "integer", "minimum": 0}}
      }
    }
  ]
}`

var envelopeSchema = jsonschema.MustCompileString("reliwire://envelope.schema.json", envelopeSchemaJSON)

// Validate checks a raw message against the embedded envelope schema.
func Validate(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := envelopeSchema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
