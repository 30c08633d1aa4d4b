package conversation

import (
	"fmt"
	"strings"
)

// DefaultHistoryWindow is how many trailing messages, the current turn
// included, are considered when rendering conversation history.
const DefaultHistoryWindow = 10

const personaTemplate = "You are a friendly and helpful AI assistant for Carton Caps, an app that empowers consumers to raise money for schools. " +
	"Your name is Cappy. You are assisting user '%s' who supports '%s'. " +
	"Your primary goals are to help users find personalized product recommendations and understand the referral process. " +
	"Be concise and engaging. Base your responses only on the information in the 'Retrieved Context' section of this prompt and the 'Conversation History'. " +
	"When asked for product recommendations, list products only if they appear in the 'Retrieved Context'. " +
	"If the 'Retrieved Context' is empty or says 'No specific products found', say that you couldn't find matching products and do not invent any. " +
	"You may then offer to search for something else or talk about referrals. " +
	"For referral questions, answer only from the 'Retrieved Context' when it is provided. Do not make up referral program details."

// PromptInput carries everything one prompt is built from. History ends with
// the current user turn.
type PromptInput struct {
	UserName   string
	SchoolName string
	Context    string
	History    []Message
	Query      string
}

type PromptBuilder struct {
	window int
}

func NewPromptBuilder(window int) *PromptBuilder {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &PromptBuilder{window: window}
}

// Build renders persona, retrieved context, prior turns oldest-first and the
// closing cue. The context block is omitted when empty.
func (b *PromptBuilder) Build(in PromptInput) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(personaTemplate, in.UserName, in.SchoolName))
	sb.WriteString("\n\n")

	if strings.TrimSpace(in.Context) != "" {
		sb.WriteString("Retrieved Context:\n")
		sb.WriteString(in.Context)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Conversation History (oldest first):")
	for _, msg := range b.priorTurns(in.History) {
		sb.WriteString("\n")
		sb.WriteString(historyRole(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
	}

	fmt.Fprintf(&sb, "\n\nUser '%s' (current query): %s\nAssistant Cappy:", in.UserName, in.Query)
	return sb.String()
}

// priorTurns windows history to the last b.window messages, then drops the
// final one (the current user turn).
func (b *PromptBuilder) priorTurns(history []Message) []Message {
	if len(history) > b.window {
		history = history[len(history)-b.window:]
	}
	if len(history) == 0 {
		return nil
	}
	return history[:len(history)-1]
}

func historyRole(role string) string {
	if role == ChatRoleAssistant {
		return "model"
	}
	return "user"
}
