package agentloop

import (
	"strings"
	"testing"
)

func newTestRegistry(t *testing.T) *ToolRegistry {
	t.Helper()
	reg := NewToolRegistry()
	RegisterCoreTools(reg)
	return reg
}

func TestDispatchUnknownTool(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t))
	ws := NewWorkspace(nil)

	result := d.Dispatch(ToolCallRequest{ToolName: "shell", Arguments: map[string]interface{}{}}, ws)
	if result.Success {
		t.Fatal("unknown tool should fail")
	}
	if !strings.Contains(result.ErrorMessage, "unknown tool") {
		t.Errorf("unexpected error: %s", result.ErrorMessage)
	}
}

func TestDispatchMissingRequiredArgument(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t))
	ws := NewWorkspace(map[string]string{"a.html": "<html></html>"})

	result := d.Dispatch(ToolCallRequest{
		ToolName:  "read_file",
		Arguments: map[string]interface{}{},
	}, ws)
	if result.Success {
		t.Fatal("missing required argument should fail")
	}
	if !strings.Contains(result.ErrorMessage, "path") {
		t.Errorf("error should name the missing argument: %s", result.ErrorMessage)
	}
}

func TestDispatchTypeViolation(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t))
	ws := NewWorkspace(map[string]string{"a.html": "x"})

	result := d.Dispatch(ToolCallRequest{
		ToolName:  "read_file",
		Arguments: map[string]interface{}{"path": 42.0},
	}, ws)
	if result.Success {
		t.Fatal("wrong argument type should fail")
	}
	if !strings.Contains(result.ErrorMessage, "string") {
		t.Errorf("error should name the expected type: %s", result.ErrorMessage)
	}
}

func TestDispatchHandlerErrorBecomesResult(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t))
	ws := NewWorkspace(nil)

	result := d.Dispatch(ToolCallRequest{
		ToolName:  "read_file",
		Arguments: map[string]interface{}{"path": "missing.html"},
	}, ws)
	if result.Success {
		t.Fatal("reading a missing file should fail")
	}
	if !strings.Contains(result.ErrorMessage, "not found") {
		t.Errorf("unexpected error: %s", result.ErrorMessage)
	}
}

func TestDispatchPanicRecovery(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:       "explode",
			Parameters: map[string]interface{}{"type": "object"},
		},
		Handler: func(args map[string]interface{}, ws *Workspace) (string, error) {
			panic("boom")
		},
	})
	d := NewDispatcher(reg)

	result := d.Dispatch(ToolCallRequest{ToolName: "explode", Arguments: map[string]interface{}{}}, NewWorkspace(nil))
	if result.Success {
		t.Fatal("panicking tool should produce a failed result")
	}
	if !strings.Contains(result.ErrorMessage, "boom") {
		t.Errorf("panic value should be in the error: %s", result.ErrorMessage)
	}
}

func TestDispatchCapturesSideEffects(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t))
	ws := NewWorkspace(nil)

	result := d.Dispatch(ToolCallRequest{
		ToolName: "write_file",
		Arguments: map[string]interface{}{
			"path":    "new.css",
			"content": "body { color: #111; }",
		},
	}, ws)
	if !result.Success {
		t.Fatalf("write failed: %s", result.ErrorMessage)
	}
	if len(result.SideEffects) != 1 {
		t.Fatalf("expected 1 side effect, got %d", len(result.SideEffects))
	}
	if result.SideEffects[0].Kind != FileCreate {
		t.Errorf("expected create, got %s", result.SideEffects[0].Kind)
	}

	// A read-only call records no side effects.
	result = d.Dispatch(ToolCallRequest{
		ToolName:  "read_file",
		Arguments: map[string]interface{}{"path": "new.css"},
	}, ws)
	if !result.Success {
		t.Fatalf("read failed: %s", result.ErrorMessage)
	}
	if len(result.SideEffects) != 0 {
		t.Errorf("read_file should not record side effects, got %d", len(result.SideEffects))
	}
}

func TestDispatchFailedToolLeavesWorkspaceUntouched(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t))
	ws := NewWorkspace(map[string]string{"a.html": "content"})

	result := d.Dispatch(ToolCallRequest{
		ToolName: "edit_file",
		Arguments: map[string]interface{}{
			"path":       "a.html",
			"old_string": "absent",
			"new_string": "x",
		},
	}, ws)
	if result.Success {
		t.Fatal("edit with absent old_string should fail")
	}
	if ws.ChangeCount() != 0 {
		t.Errorf("failed edit should make no changes, got %d", ws.ChangeCount())
	}
}

func TestDispatchRecordsDuration(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t))
	ws := NewWorkspace(map[string]string{"a.html": "x"})

	result := d.Dispatch(ToolCallRequest{
		ToolName:  "read_file",
		Arguments: map[string]interface{}{"path": "a.html"},
	}, ws)
	if result.DurationMs < 0 {
		t.Errorf("duration should be non-negative, got %d", result.DurationMs)
	}
}

func TestValidateArgumentsTypes(t *testing.T) {
	def := ToolDefinition{
		Name: "typed",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"s": map[string]interface{}{"type": "string"},
				"n": map[string]interface{}{"type": "integer"},
				"b": map[string]interface{}{"type": "boolean"},
			},
		},
	}

	cases := []struct {
		args map[string]interface{}
		ok   bool
	}{
		{map[string]interface{}{"s": "x", "n": 3.0, "b": true}, true},
		{map[string]interface{}{"s": 1.0}, false},
		{map[string]interface{}{"n": "three"}, false},
		{map[string]interface{}{"b": "yes"}, false},
		{map[string]interface{}{"undeclared": []interface{}{1.0}}, true},
	}
	for i, tc := range cases {
		err := validateArguments(def, tc.args)
		if tc.ok && err != nil {
			t.Errorf("case %d: unexpected error: %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("case %d: expected error for %v", i, tc.args)
		}
	}
}
