package conversation

// SuggestedActionsFor returns the two static quick replies plus a
// "tell me more" entry for the first product a product query found.
func SuggestedActionsFor(r Retrieval) []SuggestedAction {
	actions := []SuggestedAction{
		{Type: ActionQuickReply, TextLabel: "Recommend a snack", Payload: "Recommend a snack for me"},
		{Type: ActionQuickReply, TextLabel: "How do referrals work?", Payload: "How do referrals work?"},
	}
	if r.Intent == IntentProductQuery && len(r.Products) > 0 {
		label := "Tell me more about " + r.Products[0].Name
		actions = append(actions, SuggestedAction{Type: ActionQuickReply, TextLabel: label, Payload: label})
	}
	return actions
}
