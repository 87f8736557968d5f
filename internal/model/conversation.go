package model

// TurnMessage is one prior message in the conversation, newest last.
type TurnMessage struct {
	Role     string            `json:"role"` // "user" or "assistant"
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ConversationContext carries the cross-turn state the query core is allowed
// to see. It is supplied fresh by the caller each turn and never mutated here.
type ConversationContext struct {
	PriorMerchantID   string        `json:"prior_merchant_id,omitempty"`
	PriorMerchantName string        `json:"prior_merchant_name,omitempty"`
	LastIntent        Intent        `json:"last_intent,omitempty"`
	RecentMessages    []TurnMessage `json:"recent_messages,omitempty"`
}

// HasPriorMerchant reports whether the previous turn resolved to a merchant.
func (c *ConversationContext) HasPriorMerchant() bool {
	return c != nil && c.PriorMerchantID != "" && c.PriorMerchantName != ""
}
