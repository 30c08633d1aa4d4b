package conversation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptBuilderLayout(t *testing.T) {
	b := NewPromptBuilder(10)
	prompt := b.Build(PromptInput{
		UserName:   "Jamie",
		SchoolName: "Maple Elementary",
		Context:    "Available products related to your query:\n- Name: Oat Flakes",
		History: []Message{
			{Role: ChatRoleUser, Content: "hi"},
			{Role: ChatRoleAssistant, Content: "hello!"},
			{Role: ChatRoleUser, Content: "Can I get cereal?"},
		},
		Query: "Can I get cereal?",
	})

	assert.Contains(t, prompt, "Your name is Cappy. You are assisting user 'Jamie' who supports 'Maple Elementary'.")
	assert.Contains(t, prompt, "Retrieved Context:\nAvailable products related to your query:\n- Name: Oat Flakes\n\n")
	assert.Contains(t, prompt, "Conversation History (oldest first):\nuser: hi\nmodel: hello!\n\n")
	assert.True(t, strings.HasSuffix(prompt, "User 'Jamie' (current query): Can I get cereal?\nAssistant Cappy:"))
	assert.Equal(t, 1, strings.Count(prompt, "Can I get cereal?"), "current turn is not repeated in history")
	assert.Less(t, strings.Index(prompt, "Retrieved Context"), strings.Index(prompt, "Conversation History"))
}

func TestPromptBuilderOmitsEmptyContext(t *testing.T) {
	prompt := NewPromptBuilder(0).Build(PromptInput{
		UserName:   "u1",
		SchoolName: "their school",
		History:    []Message{{Role: ChatRoleUser, Content: "Hello"}},
		Query:      "Hello",
	})
	assert.NotContains(t, prompt, "Retrieved Context")
	assert.Contains(t, prompt, "Conversation History (oldest first):\n\nUser 'u1'")
	assert.Contains(t, prompt, "do not invent any")
}

func TestPromptBuilderWindow(t *testing.T) {
	var history []Message
	for i := 1; i <= 15; i++ {
		role := ChatRoleUser
		if i%2 == 0 {
			role = ChatRoleAssistant
		}
		history = append(history, Message{Role: role, Content: fmt.Sprintf("turn-%02d", i)})
	}

	prompt := NewPromptBuilder(10).Build(PromptInput{UserName: "u", SchoolName: "s", History: history, Query: "turn-15"})

	for i := 1; i <= 5; i++ {
		assert.NotContains(t, prompt, fmt.Sprintf("turn-%02d\n", i))
	}
	for i := 6; i <= 14; i++ {
		assert.Contains(t, prompt, fmt.Sprintf("turn-%02d", i))
	}
	assert.Less(t, strings.Index(prompt, "turn-06"), strings.Index(prompt, "turn-14"), "oldest first")
	assert.Equal(t, 1, strings.Count(prompt, "turn-15"))
}
