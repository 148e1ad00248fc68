package websocket

import (
	"context"
	"encoding/json"
	"log"

	"shopchat/internal/domain/entity"
)

// HandleClientMessage is the single inbound dispatcher per connection: every
// event a client can emit funnels through here so state transitions stay in
// one place.
func (m *Manager) HandleClientMessage(ctx context.Context, client *Client, payload []byte) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("WebSocket: Failed to unmarshal event from %s: %v", client.Key(), err)
		m.sendErrorToClient(client, "Invalid event format")
		return
	}

	switch event.Type {
	case EventPing:
		m.handlePing(client)

	case EventSend:
		var message entity.Message
		if err := json.Unmarshal(event.Data, &message); err != nil {
			m.sendErrorToClient(client, "Invalid send payload")
			return
		}
		if m.handler != nil {
			m.handler.HandleSend(ctx, client, &message)
		}

	case EventDeliveryConfirmed:
		var data DeliveryConfirmedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			m.sendErrorToClient(client, "Invalid delivery confirmation payload")
			return
		}
		if m.handler != nil {
			m.handler.HandleDeliveryConfirmed(ctx, client, data)
		}

	case EventReadReceipt:
		var data ReadReceiptData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			m.sendErrorToClient(client, "Invalid read receipt payload")
			return
		}
		if m.handler != nil {
			m.handler.HandleReadReceipt(ctx, client, data)
		}

	case EventLogout:
		// Explicit logout drops the registry entry immediately instead of
		// waiting for the socket to close.
		m.Unregister <- client

	default:
		log.Printf("WebSocket: Unknown event type '%s' from %s", event.Type, client.Key())
		m.sendErrorToClient(client, "Unknown event type")
	}
}

func (m *Manager) handlePing(client *Client) {
	payload, err := NewEvent(EventPong, map[string]string{"status": "alive"})
	if err != nil {
		return
	}
	m.SendToIdentity(client.Role, client.ID, payload)
}

func (m *Manager) sendErrorToClient(client *Client, errorMsg string) {
	payload, err := NewEvent(EventError, map[string]string{
		"error":    errorMsg,
		"identity": client.Key(),
	})
	if err != nil {
		return
	}
	m.SendToIdentity(client.Role, client.ID, payload)
}

// SendEvent marshals and forwards a typed event to an identity. Returns false
// when the identity is not connected.
func (m *Manager) SendEvent(role, id, eventType string, data interface{}) bool {
	payload, err := NewEvent(eventType, data)
	if err != nil {
		log.Printf("WebSocket: Failed to marshal %s event for %s: %v", eventType, entity.IdentityKey(role, id), err)
		return false
	}
	return m.SendToIdentity(role, id, payload)
}
