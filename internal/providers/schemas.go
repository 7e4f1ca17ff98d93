package providers

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var bankSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["account_id", "balance"],
  "properties": {
    "applicant_id": {"type": "string"},
    "account_id": {"type": "string", "minLength": 1},
    "balance": {"type": "number"},
    "avg_monthly_inflow": {"type": "number"},
    "avg_monthly_outflow": {"type": "number"},
    "overdrafts_last_12m": {"type": "integer", "minimum": 0}
  }
}`)

var documentsSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["documents"],
  "properties": {
    "applicant_id": {"type": "string"},
    "documents": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "status"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "status": {"type": "string"}
        }
      }
    }
  }
}`)

// Both bureaus share this schema; the score bounds are the accepted range.
var creditSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["score"],
  "properties": {
    "applicant_id": {"type": "string"},
    "score": {"type": "number", "minimum": 300, "maximum": 850},
    "active_accounts": {"type": "integer", "minimum": 0},
    "delinquencies": {"type": "integer", "minimum": 0}
  }
}`)

func validatePayload(schema gojsonschema.JSONLoader, body []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("payload failed schema: %s", strings.Join(errs, "; "))
	}
	return nil
}
