package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"shopchat/internal/domain/entity"
	"shopchat/internal/domain/repository"
	"shopchat/pkg/errors"
)

// statusRank orders the forward transitions of the ack state machine.
// FAILED is terminal and never overwritten by a bulk transition.
var statusRank = map[string]int{
	entity.StatusSending:   0,
	entity.StatusSent:      1,
	entity.StatusDelivered: 2,
	entity.StatusRead:      3,
}

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) messages(conversationID string) *firestore.CollectionRef {
	return r.client.Collection("conversations").Doc(conversationID).Collection("messages")
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	// Doc id is the client-generated msgId; Create (not Set) so a duplicate
	// send attempt fails instead of silently overwriting history.
	_, err := r.messages(message.ConversationID).Doc(message.MsgID).Create(ctx, message)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Message already exists")
		}
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, conversationID, msgID string) (*entity.Message, error) {
	doc, err := r.messages(conversationID).Doc(msgID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

func (r *firestoreMessageRepository) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.messages(conversationID).OrderBy("timestamp", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while counting messages for conversation %s: %v", conversationID, err)
		return nil, 0, errors.Internal("Failed to count messages for conversation", err)
	}
	total := int64(len(countDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	var messages []*entity.Message

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating messages for conversation %s: %v", conversationID, err)
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("Error parsing message data for conversation %s: %v", conversationID, err)
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}

		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreMessageRepository) UpdateStatus(ctx context.Context, conversationID, msgID, newStatus string) error {
	_, err := r.messages(conversationID).Doc(msgID).Update(ctx, []firestore.Update{
		{Path: "msgStatus", Value: newStatus},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to update message status", err)
	}
	return nil
}

func (r *firestoreMessageRepository) UpdateStatusUpTo(ctx context.Context, conversationID, msgID, recipientRole, recipientID, newStatus string) ([]string, error) {
	target, err := r.GetByID(ctx, conversationID, msgID)
	if err != nil {
		return nil, err
	}

	query := r.messages(conversationID).
		Where("recipientType", "==", recipientRole).
		Where("recipientId", "==", recipientID).
		Where("timestamp", "<=", target.Timestamp).
		OrderBy("timestamp", firestore.Asc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query messages for bulk status update", err)
	}

	var updated []string
	for _, doc := range docs {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			continue // Skip malformed documents
		}

		if message.MsgStatus == entity.StatusFailed {
			continue
		}
		if statusRank[message.MsgStatus] >= statusRank[newStatus] {
			continue // Already at or past the target state
		}

		_, err := doc.Ref.Update(ctx, []firestore.Update{
			{Path: "msgStatus", Value: newStatus},
		})
		if err != nil {
			log.Printf("UpdateStatusUpTo: failed to update message %s in conversation %s: %v", message.MsgID, conversationID, err)
			continue
		}
		updated = append(updated, message.MsgID)
	}

	return updated, nil
}

func (r *firestoreMessageRepository) GetStatuses(ctx context.Context, conversationID string, msgIDs []string) ([]*entity.Message, error) {
	var messages []*entity.Message
	for _, msgID := range msgIDs {
		message, err := r.GetByID(ctx, conversationID, msgID)
		if err != nil {
			if errors.Is(err, "NOT_FOUND") {
				continue // Unknown ids are skipped, not an error
			}
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (r *firestoreMessageRepository) ListUnread(ctx context.Context, conversationID, recipientRole, recipientID string, limit int) ([]*entity.Message, error) {
	query := r.messages(conversationID).
		Where("recipientType", "==", recipientRole).
		Where("recipientId", "==", recipientID).
		OrderBy("timestamp", firestore.Asc)

	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	var messages []*entity.Message

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate unread messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			continue // Skip malformed documents
		}

		if message.MsgStatus == entity.StatusSent || message.MsgStatus == entity.StatusDelivered {
			messages = append(messages, &message)
		}
	}

	return messages, nil
}
