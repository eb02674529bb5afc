// Package schema validates and parses raw workflow definition documents.
//
// Validation happens in two layers: a JSON Schema check over the raw
// document shape, then structural checks over the parsed graph (single start
// node, resolvable references, reachability). Only a definition that passes
// both is handed to the engine.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/procflow/procflow/types"
)

// workflowSchema is the JSON Schema (draft-07) for definition documents.
const workflowSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string", "pattern": "^\\d+\\.\\d+\\.\\d+$"},
    "description": {"type": "string"},
    "nodes": {
      "type": "array",
      "minItems": 2,
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "enum": ["start", "task", "approval", "decision", "end"]},
          "label": {"type": "string"},
          "config": {"type": "object"}
        },
        "required": ["id", "type"],
        "additionalProperties": false
      }
    },
    "transitions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "from_node": {"type": "string", "minLength": 1},
          "to_node": {"type": "string", "minLength": 1},
          "condition": {
            "type": "object",
            "properties": {
              "field": {"type": "string", "minLength": 1},
              "operator": {
                "type": "string",
                "enum": ["eq", "neq", "gt", "gte", "lt", "lte", "in", "not_in", "contains"]
              },
              "value": {}
            },
            "required": ["field", "operator", "value"],
            "additionalProperties": false
          },
          "when": {"type": "string", "minLength": 1}
        },
        "required": ["from_node", "to_node"],
        "additionalProperties": false
      }
    }
  },
  "required": ["name", "version", "nodes", "transitions"],
  "additionalProperties": false
}`

// ValidationError reports a failed JSON Schema check with every violation,
// not just the first.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow schema validation failed with %d error(s):\n  - %s",
		len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

// ValidateSchema checks a raw JSON document against the workflow schema.
// It performs no structural checks; use ParseWorkflow for the full pipeline.
func ValidateSchema(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(workflowSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, e := range result.Errors() {
		verr.Errors = append(verr.Errors, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return verr
}

// ParseWorkflow validates a raw JSON document and parses it into a
// ready-to-execute definition. This is the primary entry point for loading
// workflows.
func ParseWorkflow(raw []byte) (*types.WorkflowDefinition, error) {
	if err := ValidateSchema(raw); err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode workflow document: %w", err)
	}
	return parseDocument(doc)
}

// ParseWorkflowYAML is the YAML front end over the same pipeline: the
// document is converted to JSON, schema-checked, then parsed.
func ParseWorkflowYAML(raw []byte) (*types.WorkflowDefinition, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode workflow YAML: %w", err)
	}

	jsonRaw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert workflow YAML: %w", err)
	}
	if err := ValidateSchema(jsonRaw); err != nil {
		return nil, err
	}
	return parseDocument(doc)
}

func parseDocument(doc map[string]interface{}) (*types.WorkflowDefinition, error) {
	var def types.WorkflowDefinition
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &def,
	})
	if err != nil {
		return nil, fmt.Errorf("build workflow decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode workflow document: %w", err)
	}

	if err := ValidateStructure(&def); err != nil {
		return nil, err
	}
	return &def, nil
}
