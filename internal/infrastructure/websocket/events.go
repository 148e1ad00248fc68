package websocket

import (
	"context"
	"encoding/json"
	"time"

	"shopchat/internal/domain/entity"
)

// Inbound event types
const (
	EventSend              = "send"
	EventDeliveryConfirmed = "delivery_confirmed"
	EventReadReceipt       = "read_receipt"
	EventPing              = "ping"
	EventLogout            = "logout"
)

// Outbound event types
const (
	EventMessage             = "message"
	EventOfflineMessages     = "offline_messages"
	EventAck                 = "ack"
	EventMessagesBatchRead   = "messages_batch_read"
	EventMessageStatusUpdate = "message_status_update"
	EventPong                = "pong"
	EventError               = "error"
)

// Event is the wire envelope for both directions.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func NewEvent(eventType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{
		Type:      eventType,
		Data:      raw,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// DeliveryConfirmedData is the recipient-side confirmation that a message
// (or offline batch) actually reached the recipient process.
type DeliveryConfirmedData struct {
	ConversationID string   `json:"conversation_id"`
	MsgIDs         []string `json:"msg_ids"`
}

// ReadReceiptData marks a message read; with ReadAllBefore set it marks the
// whole range up to and including MsgID.
type ReadReceiptData struct {
	ConversationID string `json:"conversation_id"`
	MsgID          string `json:"msg_id"`
	ReadAllBefore  bool   `json:"read_all_before"`
}

// OfflineMessagesData is the grouped catch-up payload, distinct from live
// single-message delivery so clients can tell the two apart.
type OfflineMessagesData struct {
	Messages   []*entity.Message `json:"messages"`
	TotalCount int64             `json:"total_count"`
}

// MessagesBatchReadData fans a bulk read transition out to the sender.
type MessagesBatchReadData struct {
	ConversationID string   `json:"conversation_id"`
	MsgIDs         []string `json:"msg_ids"`
	MsgStatus      string   `json:"msg_status"`
}

// MessageStatusUpdateData carries current statuses for explicitly queried
// messages.
type MessageStatusUpdateData struct {
	Messages []*entity.Message `json:"messages"`
}

// EventHandler receives decoded inbound events and presence changes. The
// delivery pipeline implements it; the registry stays transport-only.
type EventHandler interface {
	HandleSend(ctx context.Context, client *Client, message *entity.Message)
	HandleDeliveryConfirmed(ctx context.Context, client *Client, data DeliveryConfirmedData)
	HandleReadReceipt(ctx context.Context, client *Client, data ReadReceiptData)
	HandleOnline(ctx context.Context, client *Client)
	HandleOffline(ctx context.Context, client *Client)
}
