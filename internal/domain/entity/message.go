package entity

import "time"

// Sender / recipient roles. Customer and agent ids come from different
// tables, so the same numeric id may exist in both namespaces.
const (
	RoleCustomer = "CUSTOMER"
	RoleAgent    = "AGENT"
	RoleSystem   = "SYSTEM"
)

// Message content types
const (
	ContentText        = "TEXT"
	ContentImage       = "IMAGE"
	ContentProductCard = "PRODUCT_CARD"
)

// Message statuses
const (
	StatusSending   = "SENDING"
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusRead      = "READ"
	StatusFailed    = "FAILED"
)

// Ack codes surfaced to clients alongside a status
const (
	AckCodeSuccess        = 200
	AckCodeDelivered      = 201
	AckCodeRead           = 202
	AckCodeContentTooLong = 413
	AckCodeRateLimited    = 429
	AckCodeServerError    = 500
)

// MaxContentLength caps the content body of a single message.
const MaxContentLength = 2048

type Message struct {
	MsgID          string    `json:"msg_id" firestore:"msgId"` // client-generated, unique per conversation
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	SenderID       string    `json:"sender_id" firestore:"senderId"`
	SenderType     string    `json:"sender_type" firestore:"senderType"` // "CUSTOMER", "AGENT", "SYSTEM"
	RecipientID    string    `json:"recipient_id" firestore:"recipientId"`
	RecipientType  string    `json:"recipient_type" firestore:"recipientType"` // "CUSTOMER", "AGENT"
	ContentType    string    `json:"content_type" firestore:"contentType"`     // "TEXT", "IMAGE", "PRODUCT_CARD"
	ContentBody    string    `json:"content_body" firestore:"contentBody"`
	Timestamp      time.Time `json:"timestamp" firestore:"timestamp"`
	MsgStatus      string    `json:"msg_status" firestore:"msgStatus"` // "SENDING", "SENT", "DELIVERED", "READ", "FAILED"
}

// Ack reports a message's status back to its sender.
type Ack struct {
	MsgID          string    `json:"msg_id"`
	ConversationID string    `json:"conversation_id"`
	MsgStatus      string    `json:"msg_status"`
	Code           int       `json:"code"`
	Timestamp      time.Time `json:"timestamp"`
}
