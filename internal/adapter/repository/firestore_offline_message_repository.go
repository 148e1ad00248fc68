package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"shopchat/internal/domain/entity"
	"shopchat/internal/domain/repository"
	"shopchat/pkg/errors"
)

type firestoreOfflineMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreOfflineMessageRepository(client *firestore.Client) repository.OfflineMessageRepository {
	return &firestoreOfflineMessageRepository{
		client: client,
	}
}

func (r *firestoreOfflineMessageRepository) Create(ctx context.Context, record *entity.OfflineMessageRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := r.client.Collection("offline_messages").Doc(record.ID).Set(ctx, record)
	if err != nil {
		return errors.Internal("Failed to create offline message record", err)
	}

	return nil
}

func (r *firestoreOfflineMessageRepository) ListPending(ctx context.Context, recipientKey string, limit int) ([]*entity.OfflineMessageRecord, error) {
	query := r.client.Collection("offline_messages").
		Where("recipientKey", "==", recipientKey).
		Where("isDelivered", "==", false).
		OrderBy("createdAt", firestore.Asc)

	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	var records []*entity.OfflineMessageRecord

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate offline message records", err)
		}

		var record entity.OfflineMessageRecord
		if err := doc.DataTo(&record); err != nil {
			log.Printf("Error parsing offline record for %s: %v", recipientKey, err)
			continue // Skip malformed documents
		}
		records = append(records, &record)
	}

	return records, nil
}

func (r *firestoreOfflineMessageRepository) CountPending(ctx context.Context, recipientKey string) (int64, error) {
	docs, err := r.client.Collection("offline_messages").
		Where("recipientKey", "==", recipientKey).
		Where("isDelivered", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to count offline message records", err)
	}
	return int64(len(docs)), nil
}

func (r *firestoreOfflineMessageRepository) MarkDelivered(ctx context.Context, recipientKey string, msgIDs []string) error {
	if len(msgIDs) == 0 {
		return nil
	}

	ids := make(map[string]bool, len(msgIDs))
	for _, id := range msgIDs {
		ids[id] = true
	}

	records, err := r.ListPending(ctx, recipientKey, 0)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, record := range records {
		if !ids[record.Message.MsgID] {
			continue
		}
		_, err := r.client.Collection("offline_messages").Doc(record.ID).Update(ctx, []firestore.Update{
			{Path: "isDelivered", Value: true},
			{Path: "deliveredAt", Value: now},
		})
		if err != nil {
			log.Printf("MarkDelivered: failed to flag record %s for %s: %v", record.ID, recipientKey, err)
			// Best effort: an un-flagged record is simply redelivered later,
			// which the at-least-once contract allows.
		}
	}

	return nil
}
