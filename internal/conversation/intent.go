package conversation

import "strings"

// Intent is the coarse category assigned to a user message.
type Intent string

const (
	IntentReferralQuestion    Intent = "referral_question"
	IntentProductQuery        Intent = "product_query"
	IntentGeneralConversation Intent = "general_conversation"
)

// IntentRule maps a keyword set to an intent. Keywords are matched as
// lower-case substrings, in slice order.
type IntentRule struct {
	Intent   Intent
	Category string
	Keywords []string
}

// DefaultIntentRules is evaluated first-match: referral keywords win over
// product keywords whenever both appear.
var DefaultIntentRules = []IntentRule{
	{
		Intent:   IntentReferralQuestion,
		Category: "referral",
		Keywords: []string{"referral", "refer", "friend"},
	},
	{
		Intent:   IntentProductQuery,
		Category: "product",
		Keywords: []string{"product", "recommend", "buy", "find", "search", "cereal", "snack", "fruit", "cheese", "oatmeal", "flakes", "bars"},
	},
}

// ProductTypeKeywords picks the product search term; first match wins.
var ProductTypeKeywords = []string{
	"cereal", "snack", "fruit", "cheese", "oatmeal", "flakes", "bar", "bars",
	"juice", "milk", "yogurt", "pasta", "bread",
}

// Classification is the classifier's verdict for one message.
type Classification struct {
	Intent   Intent
	Category string
	// Keyword is the rule keyword that matched; empty for general conversation.
	Keyword string
}

type IntentClassifier struct {
	rules []IntentRule
}

// NewIntentClassifier uses DefaultIntentRules when rules is empty.
func NewIntentClassifier(rules []IntentRule) *IntentClassifier {
	if len(rules) == 0 {
		rules = DefaultIntentRules
	}
	return &IntentClassifier{rules: rules}
}

func (c *IntentClassifier) Classify(message string) Classification {
	lower := strings.ToLower(message)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return Classification{Intent: rule.Intent, Category: rule.Category, Keyword: kw}
			}
		}
	}
	return Classification{Intent: IntentGeneralConversation}
}

// ProductSearchTerm returns the first product-type keyword in message, or the
// whole message when none matches.
func ProductSearchTerm(message string) string {
	lower := strings.ToLower(message)
	for _, kw := range ProductTypeKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return message
}
