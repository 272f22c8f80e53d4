package agentloop

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized tool output is cut down.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// Default character limits per tool.
var DefaultToolCharLimits = map[string]int{
	"read_file":      50000,
	"search_pattern": 20000,
	"list_directory": 20000,
	"edit_file":      10000,
	"write_file":     1000,
}

// Default truncation modes per tool.
var DefaultTruncationModes = map[string]TruncationMode{
	"read_file":      TruncateHeadTail,
	"search_pattern": TruncateTail,
	"list_directory": TruncateTail,
	"edit_file":      TruncateTail,
	"write_file":     TruncateTail,
}

// Default line limits per tool (applied after character truncation).
var DefaultToolLineLimits = map[string]int{
	"search_pattern": 200,
	"list_directory": 500,
}

// TruncateOutput applies character-based truncation to output.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	switch mode {
	case TruncateTail:
		removed := len(output) - maxChars
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed. "+
			"Re-run the tool with more targeted parameters to see them.]\n\n",
			removed) +
			output[len(output)-maxChars:]

	default:
		half := maxChars / 2
		removed := len(output) - maxChars
		return output[:half] +
			fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
				"Re-run the tool with more targeted parameters to see them.]\n\n",
				removed) +
			output[len(output)-half:]
	}
}

// TruncateLines applies line-based truncation using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies the truncation pipeline for a tool:
// character-based truncation first, then line-based for readability.
func TruncateToolOutput(output string, toolName string) string {
	maxChars, ok := DefaultToolCharLimits[toolName]
	if !ok {
		maxChars = 30000
	}

	mode, ok := DefaultTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)

	if maxLines, ok := DefaultToolLineLimits[toolName]; ok {
		result = TruncateLines(result, maxLines)
	}

	return result
}
