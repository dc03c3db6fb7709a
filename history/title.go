package history

// DefaultTitle is used for conversations without a user message.
const DefaultTitle = "New Conversation"

const maxTitleRunes = 50

// InferTitle derives a title from the first user message, cut to 50
// characters with a trailing ellipsis when longer.
func InferTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > maxTitleRunes {
			return string(runes[:maxTitleRunes]) + "..."
		}
		return m.Content
	}
	return DefaultTitle
}
