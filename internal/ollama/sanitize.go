package ollama

import "strings"

// junkTokens are role names and chat-formatting markers the model sometimes
// echoes into its output. Order matches the removal order applied on every
// reply.
var junkTokens = []string{
	"system",
	"user",
	"assistant",
	"<|im_start|>",
	"<|im_end|>",
	"####",
}

// SanitizeAssistantText strips chat-control token leakage from generated
// text. Running it on already-clean text is a no-op.
func SanitizeAssistantText(text string) string {
	for _, tok := range junkTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	return strings.TrimSpace(text)
}
