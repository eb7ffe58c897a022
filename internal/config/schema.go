package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// shortcutConfigSchema describes a ShortcutConfig document. Overlay fields are
// optional and nullable; agent_shortcuts is required. Unknown fields are allowed.
const shortcutConfigSchema = `{
  "type": "object",
  "required": ["agent_shortcuts"],
  "properties": {
    "overlay_toggle":       {"type": ["string", "null"]},
    "overlay_move_up":      {"type": ["string", "null"]},
    "overlay_move_down":    {"type": ["string", "null"]},
    "overlay_move_left":    {"type": ["string", "null"]},
    "overlay_move_right":   {"type": ["string", "null"]},
    "overlay_resize_up":    {"type": ["string", "null"]},
    "overlay_resize_down":  {"type": ["string", "null"]},
    "overlay_resize_left":  {"type": ["string", "null"]},
    "overlay_resize_right": {"type": ["string", "null"]},
    "agent_shortcuts": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`

// AppConfigSchema is the current on-disk schema.
var AppConfigSchema = `{
  "type": "object",
  "required": ["shortcuts"],
  "properties": {
    "shortcuts": ` + shortcutConfigSchema + `,
    "ollama_url":     {"type": ["string", "null"]},
    "ollama_api_key": {"type": ["string", "null"]}
  }
}`

// LegacySchema is the pre-migration schema: a bare shortcut object at top level.
var LegacySchema = shortcutConfigSchema

// SchemaValidator checks settings documents against the current and legacy schemas.
type SchemaValidator struct {
	current gojsonschema.JSONLoader
	legacy  gojsonschema.JSONLoader
}

// NewSchemaValidator creates a validator for both settings schemas.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		current: gojsonschema.NewStringLoader(AppConfigSchema),
		legacy:  gojsonschema.NewStringLoader(LegacySchema),
	}
}

// ValidateCurrent validates data against the current schema.
func (v *SchemaValidator) ValidateCurrent(data []byte) error {
	return validate(v.current, data)
}

// ValidateLegacy validates data against the legacy schema.
func (v *SchemaValidator) ValidateLegacy(data []byte) error {
	return validate(v.legacy, data)
}

func validate(schema gojsonschema.JSONLoader, data []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}

	return nil
}
