package agentloop

import (
	"fmt"

	"github.com/shreedharv16/accesslint/llm"
)

// MessageRole identifies who produced a conversation message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry of a session's append-only conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	Ordinal int         `json:"ordinal"`
}

// ToLLM converts a conversation slice into the completion client's message
// type, preserving order.
func ToLLM(history []Message) []llm.Message {
	out := make([]llm.Message, len(history))
	for i, m := range history {
		out[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Content}
	}
	return out
}

// IterationRecord is the per-iteration transcript entry for audit and
// replay: the exact request sent, the raw reply, and what was made of it.
type IterationRecord struct {
	Iteration int               `json:"iteration"`
	Request   []llm.Message     `json:"request"`
	RawReply  string            `json:"raw_reply"`
	ToolCalls []ToolCallRequest `json:"parsed_tool_calls"`
	Results   []ToolResult      `json:"tool_results"`
}

// formatResultMessage renders a ToolResult as conversation text for the
// model's next turn.
func formatResultMessage(r ToolResult) string {
	if r.Success {
		return fmt.Sprintf("[tool result: %s]\n%s", r.ToolName, r.Output)
	}
	return fmt.Sprintf("[tool error: %s]\n%s", r.ToolName, r.ErrorMessage)
}
