package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildSystemPrompt renders the system prompt for a session: the agent role,
// the tool call protocol, and the catalog of registered tools.
func BuildSystemPrompt(reg *ToolRegistry) string {
	var sb strings.Builder

	sb.WriteString(`You are an accessibility remediation agent. You are given a snapshot of a
web project's files and a goal describing accessibility problems to fix. You
work by reading files, making targeted edits, and confirming your changes.

To use a tool, emit a block of the form:

<tool_name>{"param": "value"}</tool_name>

The tag name must be a tool name from the list below and the body must be a
single JSON object with that tool's parameters. You may emit several blocks in
one reply; they run in order. Text outside tool blocks is treated as your own
commentary and is not executed.

Rules:
- Read a file before editing it.
- Make the smallest edit that fixes the problem.
- When the goal is satisfied, call the complete tool with a summary. Do not
  call complete until the work is actually done.

Available tools:

`)

	for _, def := range reg.Definitions() {
		fmt.Fprintf(&sb, "## %s\n%s\n", def.Name, def.Description)
		if len(def.Parameters) > 0 {
			if schema, err := json.MarshalIndent(def.Parameters, "", "  "); err == nil {
				fmt.Fprintf(&sb, "Parameters:\n%s\n", schema)
			}
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}
