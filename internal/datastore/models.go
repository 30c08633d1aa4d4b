package datastore

import "time"

// Sender values accepted by the Conversation_History table.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// School is a school a user raises money for.
type School struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// UserDetails is a user joined with their (optional) school.
type UserDetails struct {
	UserID    int64   `json:"user_id"`
	UserName  string  `json:"user_name"`
	UserEmail string  `json:"user_email,omitempty"`
	School    *School `json:"school,omitempty"`
}

// SchoolName returns the school name or "" when the user has no school.
func (u UserDetails) SchoolName() string {
	if u.School == nil {
		return ""
	}
	return u.School.Name
}

// Product is read-only catalog data.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// PurchaseRecord is a purchase joined with the product name.
type PurchaseRecord struct {
	ID          int64  `json:"purchase_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	PurchasedAt string `json:"purchased_at"`
}

// ConversationLogEntry is one persisted chat turn.
type ConversationLogEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	// RawTimestamp holds the stored value when it could not be parsed.
	RawTimestamp string `json:"raw_timestamp,omitempty"`
}
