package entity

import "time"

// OfflineMessageRecord is a durable pending delivery for a recipient that was
// not connected at send time. Written by the delivery pipeline, consumed only
// by the offline push worker, and flagged delivered once the push confirms.
type OfflineMessageRecord struct {
	ID           string    `json:"id" firestore:"id"`
	RecipientKey string    `json:"recipient_key" firestore:"recipientKey"` // identity key "ROLE:id"
	Message      Message   `json:"message" firestore:"message"`
	IsDelivered  bool      `json:"is_delivered" firestore:"isDelivered"`
	CreatedAt    time.Time `json:"created_at" firestore:"createdAt"`
	DeliveredAt  time.Time `json:"delivered_at,omitempty" firestore:"deliveredAt,omitempty"`
}

// IdentityKey builds the registry/backlog key for a role-qualified id.
func IdentityKey(role, id string) string {
	return role + ":" + id
}
