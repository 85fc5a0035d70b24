package nlp

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// classificationSchema constrains the model's JSON output before any field
// of it is trusted.  The intent vocabulary itself is not pinned here (the
// backend owns the taxonomy) but the shape is: intent must be a non-empty
// string, language a string, details an object.
const classificationSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["intent"],
  "properties": {
    "intent": {
      "type": "string",
      "minLength": 1
    },
    "language": {
      "type": "string"
    },
    "details": {
      "type": "object"
    }
  }
}`

var compiledClassificationSchema = jsonschema.MustCompileString("classification.json", classificationSchema)

// validateClassification checks raw LLM output against the classification
// schema.  Returns an error wrapping ErrMalformedOutput when the document
// does not conform, so callers can distinguish bad model output from
// transport failures with errors.Is.
func validateClassification(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrMalformedOutput, err)
	}
	if err := compiledClassificationSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}
