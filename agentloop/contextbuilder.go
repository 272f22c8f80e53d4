package agentloop

// omissionMarker is injected into the request where older history was dropped.
const omissionMarker = "[earlier conversation omitted to fit the context budget]"

// seedMessageCount is the number of leading messages always kept: the system
// prompt and the initial goal message.
const seedMessageCount = 2

// ContextBuilder assembles the message window sent to the model. When the
// transcript exceeds the character budget it keeps the seed messages and the
// longest suffix of recent history that fits, with a marker where the gap is.
type ContextBuilder struct {
	// BudgetChars is the total character budget for message content.
	// Zero means no budget; the full history is sent.
	BudgetChars int
}

// Build selects the messages to send for the next model request.
func (b *ContextBuilder) Build(history []Message) []Message {
	if b.BudgetChars <= 0 || totalChars(history) <= b.BudgetChars {
		return history
	}
	if len(history) <= seedMessageCount {
		return history
	}

	seed := history[:seedMessageCount]
	budget := b.BudgetChars - totalChars(seed) - len(omissionMarker)

	// Walk backward accumulating the most recent messages that fit.
	start := len(history)
	used := 0
	for i := len(history) - 1; i >= seedMessageCount; i-- {
		used += len(history[i].Content)
		if used > budget {
			break
		}
		start = i
	}

	out := make([]Message, 0, len(seed)+1+len(history)-start)
	out = append(out, seed...)
	if start > seedMessageCount {
		out = append(out, Message{Role: RoleUser, Content: omissionMarker})
	}
	out = append(out, history[start:]...)
	return out
}

func totalChars(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		n += len(m.Content)
	}
	return n
}
