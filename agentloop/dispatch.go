package agentloop

import (
	"fmt"
	"time"
)

// ToolResult is the outcome of executing one tool call. Failures are data
// fed back to the model, never errors escaping to the orchestrator.
type ToolResult struct {
	ToolName     string       `json:"tool_name"`
	Success      bool         `json:"success"`
	Output       string       `json:"output,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	SideEffects  []FileChange `json:"side_effects,omitempty"`
	DurationMs   int64        `json:"duration_ms"`
}

// Dispatcher validates and executes tool calls against the registry and a
// workspace snapshot.
type Dispatcher struct {
	registry *ToolRegistry
}

// NewDispatcher creates a Dispatcher over the given registry.
func NewDispatcher(registry *ToolRegistry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch runs one tool call. It always returns a well-formed ToolResult:
// unknown tools, schema violations, handler errors, and handler panics all
// become failed results.
func (d *Dispatcher) Dispatch(call ToolCallRequest, ws *Workspace) (result ToolResult) {
	start := time.Now()
	result.ToolName = call.ToolName
	defer func() {
		result.DurationMs = time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			result.Success = false
			result.Output = ""
			result.ErrorMessage = fmt.Sprintf("tool %s panicked: %v", call.ToolName, r)
		}
	}()

	tool := d.registry.Get(call.ToolName)
	if tool == nil {
		result.ErrorMessage = fmt.Sprintf("unknown tool: %s", call.ToolName)
		return result
	}

	if err := validateArguments(tool.Definition, call.Arguments); err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	before := ws.ChangeCount()
	output, err := tool.Handler(call.Arguments, ws)
	result.SideEffects = ws.ChangesSince(before)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("%s: %v", call.ToolName, err)
		return result
	}

	result.Success = true
	result.Output = output
	return result
}

// validateArguments checks required fields and declared property types
// against the definition's JSON-schema-shaped parameter map. Violations
// surface as ordinary failures, not exceptions.
func validateArguments(def ToolDefinition, args map[string]interface{}) error {
	properties, _ := def.Parameters["properties"].(map[string]interface{})

	if required, ok := def.Parameters["required"].([]string); ok {
		for _, key := range required {
			if _, present := args[key]; !present {
				return fmt.Errorf("%s: missing required argument %q", def.Name, key)
			}
		}
	} else if required, ok := def.Parameters["required"].([]interface{}); ok {
		for _, k := range required {
			key, _ := k.(string)
			if _, present := args[key]; !present {
				return fmt.Errorf("%s: missing required argument %q", def.Name, key)
			}
		}
	}

	for key, value := range args {
		spec, declared := properties[key].(map[string]interface{})
		if !declared {
			continue
		}
		wantType, _ := spec["type"].(string)
		if wantType == "" {
			continue
		}
		if !matchesSchemaType(value, wantType) {
			return fmt.Errorf("%s: argument %q must be of type %s", def.Name, key, wantType)
		}
	}
	return nil
}

func matchesSchemaType(value interface{}, schemaType string) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer", "number":
		switch value.(type) {
		case float64, int:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	default:
		return true
	}
}
