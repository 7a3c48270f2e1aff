package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"gapgiraffe/internal/repository"
)

const jobDataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["url", "extractedAt", "title", "company", "description"],
  "properties": {
    "url": {"type": "string", "minLength": 1},
    "extractedAt": {"type": "string", "format": "date-time"},
    "title": {"$ref": "#/definitions/requiredField"},
    "company": {"$ref": "#/definitions/field"},
    "description": {"$ref": "#/definitions/field"}
  },
  "definitions": {
    "field": {
      "type": "object",
      "required": ["value", "confidence"],
      "properties": {
        "value": {"type": "string"},
        "confidence": {"enum": ["high", "medium", "low"]}
      }
    },
    "requiredField": {
      "allOf": [
        {"$ref": "#/definitions/field"},
        {"properties": {"value": {"minLength": 1}}}
      ]
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(jobDataSchema))
})

// Decode validates raw against the extraction schema and decodes it.
func Decode(raw []byte) (*JobData, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile job data schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: job data is not valid JSON: %v", repository.ErrValidation, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: job data: %s", repository.ErrValidation, strings.Join(msgs, "; "))
	}

	var data JobData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: decode job data: %v", repository.ErrValidation, err)
	}
	return &data, nil
}
