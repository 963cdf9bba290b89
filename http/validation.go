package http

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// requestPaymentSchema accepts amounts only as strings so no precision is lost in JSON numbers
var requestPaymentSchema = []byte(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"recipient": {"type": "string", "minLength": 1, "maxLength": 64},
		"amount": {"type": "string", "minLength": 1, "maxLength": 96}
	},
	"required": ["recipient", "amount"],
	"additionalProperties": false
}`)

// setWalletSchema only checks shape; address validity is decided by the service
var setWalletSchema = []byte(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"address": {"type": "string", "minLength": 1, "maxLength": 128}
	},
	"required": ["address"],
	"additionalProperties": false
}`)

var (
	requestPaymentSchemaLoader = gojsonschema.NewBytesLoader(requestPaymentSchema)
	setWalletSchemaLoader      = gojsonschema.NewBytesLoader(setWalletSchema)
)

// ValidationResult represents the result of validating a request body
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateRequestPaymentBody validates a payment request body against its schema
func ValidateRequestPaymentBody(body []byte) ValidationResult {
	return validate(requestPaymentSchemaLoader, body)
}

// ValidateSetWalletBody validates a wallet registration body against its schema
func ValidateSetWalletBody(body []byte) ValidationResult {
	return validate(setWalletSchemaLoader, body)
}

func validate(schema gojsonschema.JSONLoader, body []byte) ValidationResult {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("Schema validation failed: %v", err)},
		}
	}

	if result.Valid() {
		return ValidationResult{Valid: true}
	}

	// Collect errors
	errors := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errors = append(errors, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return ValidationResult{Valid: false, Errors: errors}
}
