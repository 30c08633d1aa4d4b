package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cartoncaps-assistant/internal/datastore"
)

func TestSuggestedActionsFor(t *testing.T) {
	t.Run("static entries only", func(t *testing.T) {
		actions := SuggestedActionsFor(Retrieval{Intent: IntentReferralQuestion})
		require.Len(t, actions, 2)
		for _, a := range actions {
			assert.Equal(t, ActionQuickReply, a.Type)
		}
	})

	t.Run("product query without rows", func(t *testing.T) {
		actions := SuggestedActionsFor(Retrieval{Intent: IntentProductQuery})
		assert.Len(t, actions, 2)
	})

	t.Run("product query names first product", func(t *testing.T) {
		actions := SuggestedActionsFor(Retrieval{
			Intent: IntentProductQuery,
			Products: []datastore.Product{
				{Name: "Granola Bars"},
				{Name: "Trail Mix"},
			},
		})
		require.Len(t, actions, 3)
		assert.Equal(t, "Tell me more about Granola Bars", actions[2].TextLabel)
		assert.Equal(t, "Tell me more about Granola Bars", actions[2].Payload)
	})
}
