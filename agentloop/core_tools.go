package agentloop

import (
	"fmt"
	"regexp"
	"strings"
)

// CompleteToolName is the designated terminal tool. A successful call to it
// is the only path to a Completed session.
const CompleteToolName = "complete"

// RegisterCoreTools registers the built-in snapshot tools on a registry.
func RegisterCoreTools(reg *ToolRegistry) {
	registerReadFile(reg)
	registerWriteFile(reg)
	registerEditFile(reg)
	registerListDirectory(reg)
	registerSearchPattern(reg)
	registerComplete(reg)
}

func registerReadFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "read_file",
			Description: "Read a file from the workspace. Returns line-numbered content.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Workspace path of the file to read.",
					},
					"offset": map[string]interface{}{
						"type":        "integer",
						"description": "1-based line number to start reading from.",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of lines to read. Default: 2000.",
					},
				},
				"required": []string{"path"},
			},
		},
		Handler: func(args map[string]interface{}, ws *Workspace) (string, error) {
			path, ok := GetStringArg(args, "path")
			if !ok || path == "" {
				return "", fmt.Errorf("path is required")
			}
			content, exists := ws.Read(path)
			if !exists {
				return "", fmt.Errorf("file not found: %s", path)
			}
			offset, _ := GetIntArg(args, "offset")
			limit, _ := GetIntArg(args, "limit")
			if limit == 0 {
				limit = 2000
			}

			lines := strings.Split(content, "\n")
			start := 0
			if offset > 0 {
				start = offset - 1
			}
			if start >= len(lines) {
				return "", nil
			}
			end := len(lines)
			if start+limit < end {
				end = start + limit
			}

			var sb strings.Builder
			for i := start; i < end; i++ {
				fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
			}
			return sb.String(), nil
		},
	})
}

func registerWriteFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "write_file",
			Description: "Write content to a workspace file, creating it if needed.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Workspace path to write to.",
					},
					"content": map[string]interface{}{
						"type":        "string",
						"description": "The full file content to write.",
					},
				},
				"required": []string{"path", "content"},
			},
		},
		Handler: func(args map[string]interface{}, ws *Workspace) (string, error) {
			path, ok := GetStringArg(args, "path")
			if !ok || path == "" {
				return "", fmt.Errorf("path is required")
			}
			content, ok := GetStringArg(args, "content")
			if !ok {
				return "", fmt.Errorf("content is required")
			}
			ws.Write(path, content)
			return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
		},
	})
}

func registerEditFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name: "edit_file",
			Description: "Replace an exact string occurrence in a workspace file. " +
				"The old_string must be unique in the file unless replace_all is true.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Workspace path of the file to edit.",
					},
					"old_string": map[string]interface{}{
						"type":        "string",
						"description": "Exact text to find in the file.",
					},
					"new_string": map[string]interface{}{
						"type":        "string",
						"description": "Replacement text.",
					},
					"replace_all": map[string]interface{}{
						"type":        "boolean",
						"description": "Replace all occurrences. Default: false.",
					},
				},
				"required": []string{"path", "old_string", "new_string"},
			},
		},
		Handler: func(args map[string]interface{}, ws *Workspace) (string, error) {
			path, ok := GetStringArg(args, "path")
			if !ok || path == "" {
				return "", fmt.Errorf("path is required")
			}
			oldString, ok := GetStringArg(args, "old_string")
			if !ok || oldString == "" {
				return "", fmt.Errorf("old_string is required")
			}
			newString, _ := GetStringArg(args, "new_string")
			replaceAll, _ := GetBoolArg(args, "replace_all")

			content, exists := ws.Read(path)
			if !exists {
				return "", fmt.Errorf("file not found: %s", path)
			}

			count := strings.Count(content, oldString)
			if count == 0 {
				return "", fmt.Errorf("old_string not found in %s", path)
			}
			if count > 1 && !replaceAll {
				return "", fmt.Errorf("old_string found %d times in %s; provide more context to make it unique, or set replace_all=true", count, path)
			}

			if replaceAll {
				ws.Write(path, strings.ReplaceAll(content, oldString, newString))
				return fmt.Sprintf("Replaced %d occurrence(s) in %s", count, path), nil
			}
			ws.Write(path, strings.Replace(content, oldString, newString, 1))
			return fmt.Sprintf("Replaced 1 occurrence in %s", path), nil
		},
	})
}

func registerListDirectory(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "list_directory",
			Description: "List workspace files, optionally under a path prefix.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path prefix to list. Default: the whole workspace.",
					},
				},
			},
		},
		Handler: func(args map[string]interface{}, ws *Workspace) (string, error) {
			prefix, _ := GetStringArg(args, "path")
			prefix = strings.TrimPrefix(prefix, "./")

			var sb strings.Builder
			matched := 0
			for _, p := range ws.Paths() {
				if prefix != "" && !strings.HasPrefix(p, prefix) {
					continue
				}
				content, _ := ws.Read(p)
				fmt.Fprintf(&sb, "%s (%d bytes)\n", p, len(content))
				matched++
			}
			if matched == 0 {
				if prefix != "" {
					return "", fmt.Errorf("no files under %s", prefix)
				}
				return "The workspace is empty.", nil
			}
			return sb.String(), nil
		},
	})
}

func registerSearchPattern(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "search_pattern",
			Description: "Search workspace file contents with a regex. Returns matching lines as path:line: text.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pattern": map[string]interface{}{
						"type":        "string",
						"description": "Regex pattern to search for.",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path prefix to search under. Default: the whole workspace.",
					},
					"case_insensitive": map[string]interface{}{
						"type":        "boolean",
						"description": "Case insensitive search. Default: false.",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of matching lines. Default: 100.",
					},
				},
				"required": []string{"pattern"},
			},
		},
		Handler: func(args map[string]interface{}, ws *Workspace) (string, error) {
			pattern, ok := GetStringArg(args, "pattern")
			if !ok || pattern == "" {
				return "", fmt.Errorf("pattern is required")
			}
			prefix, _ := GetStringArg(args, "path")
			caseInsensitive, _ := GetBoolArg(args, "case_insensitive")
			maxResults, _ := GetIntArg(args, "max_results")
			if maxResults <= 0 {
				maxResults = 100
			}

			if caseInsensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return "", fmt.Errorf("invalid pattern: %v", err)
			}

			var sb strings.Builder
			found := 0
			for _, p := range ws.Paths() {
				if prefix != "" && !strings.HasPrefix(p, prefix) {
					continue
				}
				content, _ := ws.Read(p)
				for n, line := range strings.Split(content, "\n") {
					if found >= maxResults {
						fmt.Fprintf(&sb, "[results capped at %d matches]\n", maxResults)
						return sb.String(), nil
					}
					if re.MatchString(line) {
						fmt.Fprintf(&sb, "%s:%d: %s\n", p, n+1, line)
						found++
					}
				}
			}
			if found == 0 {
				return "No matches found.", nil
			}
			return sb.String(), nil
		},
	})
}

func registerComplete(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name: CompleteToolName,
			Description: "Signal that the goal is satisfied. Call this exactly once, when the work is done. " +
				"Any tool calls after it in the same reply are ignored.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"summary": map[string]interface{}{
						"type":        "string",
						"description": "What was done and why the goal is satisfied.",
					},
				},
				"required": []string{"summary"},
			},
		},
		Handler: func(args map[string]interface{}, ws *Workspace) (string, error) {
			summary, ok := GetStringArg(args, "summary")
			if !ok || summary == "" {
				return "", fmt.Errorf("summary is required")
			}
			return summary, nil
		},
	})
}
