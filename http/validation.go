package http

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Request body schemas. Validation runs against the raw body before binding,
// so a malformed payload is rejected with a descriptive 400 instead of a
// bind error.
const taskRequestSchema = `{
	"type": "object",
	"properties": {
		"title":       {"type": "string", "minLength": 1, "maxLength": 255},
		"description": {"type": "string", "maxLength": 4000},
		"version":     {"type": "integer", "minimum": 1}
	},
	"required": ["title"],
	"additionalProperties": false
}`

const paymentRequestSchema = `{
	"type": "object",
	"properties": {
		"taskId":            {"type": "string", "minLength": 1},
		"amount":            {"type": "string", "pattern": "^[0-9]+(\\.[0-9]{1,8})?$"},
		"currency":          {"type": "string", "pattern": "^[A-Z]{3}$"},
		"externalReference": {"type": "string", "minLength": 1, "maxLength": 255}
	},
	"required": ["taskId", "amount", "currency", "externalReference"],
	"additionalProperties": false
}`

var (
	taskSchema    = gojsonschema.NewStringLoader(taskRequestSchema)
	paymentSchema = gojsonschema.NewStringLoader(paymentRequestSchema)
)

// validateTaskRequest validates a task create/update body against its schema.
// Returns an error with a descriptive message if invalid.
func validateTaskRequest(body []byte) error {
	return validateAgainst(taskSchema, body)
}

// validatePaymentRequest validates a payment submission body against its schema.
func validatePaymentRequest(body []byte) error {
	return validateAgainst(paymentSchema, body)
}

// bindJSON decodes an already-validated body into v.
func bindJSON(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func validateAgainst(schema gojsonschema.JSONLoader, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("request body is empty")
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid request body: not valid JSON - %v", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("invalid request body: %s", strings.Join(messages, "; "))
	}

	return nil
}
