package agentloop

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// SourceSpan locates a parsed block inside the raw reply, for diagnostics.
type SourceSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ToolCallRequest is a structured tool invocation extracted from model text.
type ToolCallRequest struct {
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
	Span      SourceSpan             `json:"source_span"`
}

// ParseResult holds everything extracted from one raw model reply.
type ParseResult struct {
	Calls       []ToolCallRequest
	Commentary  string   // prose outside tool blocks
	Diagnostics []string // per-block recoverable problems
}

// ParseToolCalls extracts tool invocations written as
// <toolName>{...JSON...}</toolName> from a raw model reply.
//
// Only names in vocabulary delimit blocks: a tag-shaped token such as
// <main> inside a JSON string or in prose is never treated as a tool call.
// Each block's inner text must be a strict JSON object; a block that fails
// to parse is skipped with a diagnostic and the rest of the reply is still
// processed. Call order matches source order.
func ParseToolCalls(reply string, vocabulary []string) ParseResult {
	var result ParseResult
	var prose strings.Builder

	i := 0
	for i < len(reply) {
		lt := strings.IndexByte(reply[i:], '<')
		if lt < 0 {
			prose.WriteString(reply[i:])
			break
		}
		lt += i
		prose.WriteString(reply[i:lt])
		i = lt

		name := matchVocabulary(reply[i:], vocabulary)
		if name == "" {
			prose.WriteByte('<')
			i++
			continue
		}

		openEnd := i + len(name) + 2 // past "<name>"
		closeTag := "</" + name + ">"
		rel := strings.Index(reply[openEnd:], closeTag)
		if rel < 0 {
			result.Diagnostics = append(result.Diagnostics,
				fmt.Sprintf("unterminated <%s> block at offset %d", name, i))
			prose.WriteByte('<')
			i++
			continue
		}

		inner := reply[openEnd : openEnd+rel]
		end := openEnd + rel + len(closeTag)

		args, err := parseStrictJSONObject(inner)
		if err != nil {
			result.Diagnostics = append(result.Diagnostics,
				fmt.Sprintf("skipping <%s> block at offset %d: %v", name, i, err))
		} else {
			result.Calls = append(result.Calls, ToolCallRequest{
				ToolName:  name,
				Arguments: args,
				Span:      SourceSpan{Start: i, End: end},
			})
		}
		i = end
	}

	result.Commentary = strings.TrimSpace(prose.String())
	return result
}

// matchVocabulary returns the vocabulary name whose open tag starts at the
// beginning of s, or "". The full "<name>" including the closing bracket
// must match, so name prefixes cannot collide.
func matchVocabulary(s string, vocabulary []string) string {
	for _, name := range vocabulary {
		if len(s) >= len(name)+2 &&
			s[0] == '<' &&
			s[len(name)+1] == '>' &&
			s[1:len(name)+1] == name {
			return name
		}
	}
	return ""
}

// parseStrictJSONObject decodes text as exactly one JSON object with
// nothing but whitespace around it.
func parseStrictJSONObject(text string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	var args map[string]interface{}
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if args == nil {
		return nil, fmt.Errorf("tool arguments must be a JSON object")
	}
	// Anything after the object besides whitespace is a malformed block.
	if err := checkTrailing(dec); err != nil {
		return nil, err
	}
	return args, nil
}

func checkTrailing(dec *json.Decoder) error {
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return fmt.Errorf("trailing content after JSON object")
	}
	return nil
}
