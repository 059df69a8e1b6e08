package generator

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Split separates system instructions from the conversation, for providers
// that take them as a separate parameter.
func Split(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if len(system) > 0 {
				system += "\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}

	return system, rest
}
