package daemon

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"mediaflow/internal/access"
	"mediaflow/internal/ingress"
	"mediaflow/internal/services"
)

func roleSchemaJSON() string {
	roles := make([]string, 0, len(access.Roles))
	for _, r := range access.Roles {
		roles = append(roles, fmt.Sprintf("%q", r))
	}
	return `{
  "type": "object",
  "additionalProperties": false,
  "required": ["role"],
  "properties": {
    "role": {"type": "string", "enum": [` + strings.Join(roles, ", ") + `]}
  }
}`
}

func submitMetadataSchemaJSON() string {
	types := make([]string, 0, len(ingress.AllowedMimeTypes))
	for _, t := range ingress.AllowedMimeTypes {
		types = append(types, fmt.Sprintf("%q", t))
	}
	return `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "originalName": {"type": "string", "minLength": 1, "maxLength": 255},
    "mimeType": {"type": "string", "enum": [` + strings.Join(types, ", ") + `]}
  }
}`
}

var (
	roleChangeSchema     = jsonschema.MustCompileString("role-change.json", roleSchemaJSON())
	submitMetadataSchema = jsonschema.MustCompileString("submit-metadata.json", submitMetadataSchemaJSON())
)

// decodeValidated checks data against schema and then decodes it into dst.
// Both malformed JSON and schema violations are validation errors.
func decodeValidated(schema *jsonschema.Schema, data []byte, dst any) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode body", "malformed JSON", err)
	}
	if err := schema.Validate(doc); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode body", schemaMessage(err), nil)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode body", "malformed JSON", err)
	}
	return nil
}

// schemaMessage flattens a validation error to its most specific cause.
func schemaMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	location := ve.InstanceLocation
	if location == "" {
		location = "/"
	}
	return fmt.Sprintf("%s: %s", location, ve.Message)
}
