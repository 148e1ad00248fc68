package entity

import "time"

type Conversation struct {
	ID            string         `json:"id" firestore:"id"`
	Shop          string         `json:"shop" firestore:"shop"`
	CustomerID    string         `json:"customer_id" firestore:"customerId"`
	Status        string         `json:"status" firestore:"status"` // "open", "closed"
	LastMessage   string         `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time      `json:"last_message_at" firestore:"lastMessageAt"`
	UnreadCount   map[string]int `json:"unread_count" firestore:"unreadCount"` // keyed by identity key (role:id)
	// LastReadMsgID is the dedup boundary for batch read receipts, keyed by
	// reader identity. Persisted so a restart does not re-emit an already
	// processed batch-read.
	LastReadMsgID map[string]string `json:"last_read_msg_id" firestore:"lastReadMsgId"`
	CreatedAt     time.Time         `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time         `json:"updated_at" firestore:"updatedAt"`
}
