package usecase

import (
	"context"
	"log"
	"time"

	"shopchat/internal/domain/entity"
	"shopchat/internal/domain/repository"
	"shopchat/internal/infrastructure/kafka"
	"shopchat/internal/infrastructure/ratelimit"
	"shopchat/internal/infrastructure/redisq"
	ws "shopchat/internal/infrastructure/websocket"
	"shopchat/pkg/errors"
)

// QueueOfflinePush is the job queue feeding the offline push worker.
const QueueOfflinePush = "offline-push"

// JobTypeOfflinePush asks the worker to drain one recipient's backlog.
const JobTypeOfflinePush = "offline_push"

// OfflinePushPayload identifies the recipient whose backlog should be pushed.
type OfflinePushPayload struct {
	Role string `json:"role"`
	ID   string `json:"id"`
}

// DeliveryUseCase is the delivery pipeline: it persists sends, routes them
// live or into the offline backlog, drives the ack state machine, and fans
// status transitions back to senders. It is the only EventHandler behind the
// websocket dispatcher.
type DeliveryUseCase struct {
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	offlineRepo      repository.OfflineMessageRepository
	registry         Registry
	buffer           OfflineBuffer
	jobs             JobEnqueuer
	events           EventPublisher
	rateLimiter      *ratelimit.RateLimiter
	jobAttempts      int
	jobBackoffMs     int64
}

func NewDeliveryUseCase(
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	offlineRepo repository.OfflineMessageRepository,
	registry Registry,
	buffer OfflineBuffer,
	jobs JobEnqueuer,
	events EventPublisher,
	rateLimiter *ratelimit.RateLimiter,
	jobAttempts int,
	jobBackoffMs int64,
) *DeliveryUseCase {
	return &DeliveryUseCase{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		offlineRepo:      offlineRepo,
		registry:         registry,
		buffer:           buffer,
		jobs:             jobs,
		events:           events,
		rateLimiter:      rateLimiter,
		jobAttempts:      jobAttempts,
		jobBackoffMs:     jobBackoffMs,
	}
}

// SendMessage runs the send pipeline and returns the ack for the sender.
// Persistence failure is fatal to the attempt; a failed live hop after
// persistence degrades to the offline path, never loses the record.
func (uc *DeliveryUseCase) SendMessage(ctx context.Context, message *entity.Message) *entity.Ack {
	if uc.rateLimiter != nil {
		senderKey := entity.IdentityKey(message.SenderType, message.SenderID)
		if allowed, retryAfter := uc.rateLimiter.Allow(senderKey, "send"); !allowed {
			log.Printf("SendMessage: rate limited %s, retry after %v", senderKey, retryAfter)
			return uc.ack(message, entity.StatusFailed, entity.AckCodeRateLimited)
		}
	}

	if len(message.ContentBody) > entity.MaxContentLength {
		return uc.ack(message, entity.StatusFailed, entity.AckCodeContentTooLong)
	}

	// Canonical server timestamp; client clocks are not trusted.
	message.Timestamp = time.Now()
	message.MsgStatus = entity.StatusSent

	if err := uc.messageRepo.Create(ctx, message); err != nil {
		if errors.Is(err, "CONFLICT") {
			// Client retry of an already-persisted send: report the stored
			// status instead of erroring, per the at-least-once contract.
			existing, getErr := uc.messageRepo.GetByID(ctx, message.ConversationID, message.MsgID)
			if getErr == nil {
				return uc.ack(existing, existing.MsgStatus, entity.AckCodeSuccess)
			}
		}
		// Never retried here: a silent retry could assign a different id path.
		log.Printf("SendMessage Error: Failed to persist message %s in conversation %s: %v", message.MsgID, message.ConversationID, err)
		return uc.ack(message, entity.StatusFailed, entity.AckCodeServerError)
	}

	uc.events.Publish(kafka.ChatEvent{
		Kind:           "message_persisted",
		ConversationID: message.ConversationID,
		MsgID:          message.MsgID,
		MsgStatus:      message.MsgStatus,
	})

	uc.touchConversation(ctx, message)

	// Live route: forward verbatim. DELIVERED is set only by the recipient's
	// own confirmation round-trip, never by a successful socket write.
	if uc.registry.SendEvent(message.RecipientType, message.RecipientID, ws.EventMessage, message) {
		return uc.ack(message, entity.StatusSent, entity.AckCodeSuccess)
	}

	// Offline path: fast buffer plus opportunistic durable record. A partial
	// failure between the two writes is reconciled on the next full reload.
	recipientKey := entity.IdentityKey(message.RecipientType, message.RecipientID)
	bufferErr := uc.buffer.Push(ctx, recipientKey, message)
	if bufferErr != nil {
		log.Printf("SendMessage: offline buffer push failed for %s (msg %s): %v", recipientKey, message.MsgID, bufferErr)
	}
	durableErr := uc.offlineRepo.Create(ctx, &entity.OfflineMessageRecord{
		RecipientKey: recipientKey,
		Message:      *message,
	})
	if durableErr != nil {
		log.Printf("SendMessage: durable offline record failed for %s (msg %s): %v", recipientKey, message.MsgID, durableErr)
	}

	// With no offline copy anywhere, the recipient would never see this
	// message; the history record stays, the sender gets FAILED and owns the
	// retry.
	if bufferErr != nil && durableErr != nil {
		return uc.ack(message, entity.StatusFailed, entity.AckCodeServerError)
	}

	// SENT never implies delivery.
	return uc.ack(message, entity.StatusSent, entity.AckCodeSuccess)
}

func (uc *DeliveryUseCase) ack(message *entity.Message, status string, code int) *entity.Ack {
	return &entity.Ack{
		MsgID:          message.MsgID,
		ConversationID: message.ConversationID,
		MsgStatus:      status,
		Code:           code,
		Timestamp:      time.Now(),
	}
}

// touchConversation updates last-message info and unread counters. Best
// effort: a failure here never fails the send.
func (uc *DeliveryUseCase) touchConversation(ctx context.Context, message *entity.Message) {
	conversation, err := uc.conversationRepo.GetByID(ctx, message.ConversationID)
	if err != nil {
		log.Printf("SendMessage: conversation %s not found for message %s: %v", message.ConversationID, message.MsgID, err)
		return
	}

	conversation.LastMessage = message.ContentBody
	conversation.LastMessageAt = message.Timestamp
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}
	recipientKey := entity.IdentityKey(message.RecipientType, message.RecipientID)
	conversation.UnreadCount[recipientKey]++

	if err := uc.conversationRepo.Update(ctx, conversation); err != nil {
		log.Printf("SendMessage: failed to update conversation %s: %v", conversation.ID, err)
	}
}

// HandleSend processes an inbound send event and acks the sender.
func (uc *DeliveryUseCase) HandleSend(ctx context.Context, client *ws.Client, message *entity.Message) {
	// The connection's identity is authoritative over whatever the payload
	// claims.
	message.SenderID = client.ID
	message.SenderType = client.Role

	ack := uc.SendMessage(ctx, message)
	uc.registry.SendEvent(client.Role, client.ID, ws.EventAck, ack)
}

// HandleDeliveryConfirmed transitions messages to DELIVERED and fans the
// result back to each original sender. Re-confirming an already delivered or
// read message is a no-op.
func (uc *DeliveryUseCase) HandleDeliveryConfirmed(ctx context.Context, client *ws.Client, data ws.DeliveryConfirmedData) {
	var confirmed []*entity.Message

	for _, msgID := range data.MsgIDs {
		message, err := uc.messageRepo.GetByID(ctx, data.ConversationID, msgID)
		if err != nil {
			log.Printf("HandleDeliveryConfirmed: message %s not found in conversation %s: %v", msgID, data.ConversationID, err)
			continue
		}
		if message.MsgStatus != entity.StatusSent {
			continue // Already delivered or read
		}

		if err := uc.messageRepo.UpdateStatus(ctx, data.ConversationID, msgID, entity.StatusDelivered); err != nil {
			log.Printf("HandleDeliveryConfirmed: failed to update message %s: %v", msgID, err)
			continue
		}
		message.MsgStatus = entity.StatusDelivered
		confirmed = append(confirmed, message)

		uc.events.Publish(kafka.ChatEvent{
			Kind:           "status_changed",
			ConversationID: data.ConversationID,
			MsgID:          msgID,
			MsgStatus:      entity.StatusDelivered,
		})
	}

	uc.fanOutToSenders(confirmed, entity.AckCodeDelivered)
}

// fanOutToSenders routes status transitions back to the original senders: a
// single ack for one message, one consolidated status update for a batch.
func (uc *DeliveryUseCase) fanOutToSenders(messages []*entity.Message, code int) {
	bySender := make(map[string][]*entity.Message)
	for _, message := range messages {
		bySender[entity.IdentityKey(message.SenderType, message.SenderID)] = append(
			bySender[entity.IdentityKey(message.SenderType, message.SenderID)], message)
	}

	for _, group := range bySender {
		sender := group[0]
		if len(group) == 1 {
			uc.registry.SendEvent(sender.SenderType, sender.SenderID, ws.EventAck, uc.ack(sender, sender.MsgStatus, code))
			continue
		}
		uc.registry.SendEvent(sender.SenderType, sender.SenderID, ws.EventMessageStatusUpdate, ws.MessageStatusUpdateData{
			Messages: group,
		})
	}
}

// HandleReadReceipt marks one message, or the whole range up to it, read.
// The range form is idempotent: re-issuing the same boundary emits nothing.
func (uc *DeliveryUseCase) HandleReadReceipt(ctx context.Context, client *ws.Client, data ws.ReadReceiptData) {
	readerKey := entity.IdentityKey(client.Role, client.ID)

	if !data.ReadAllBefore {
		uc.markSingleRead(ctx, data.ConversationID, data.MsgID)
		return
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, data.ConversationID)
	if err != nil {
		log.Printf("HandleReadReceipt: conversation %s not found: %v", data.ConversationID, err)
		return
	}

	// Dedup boundary lives on the conversation so a restart cannot re-emit
	// an already processed batch-read.
	if conversation.LastReadMsgID[readerKey] == data.MsgID {
		return
	}

	updated, err := uc.messageRepo.UpdateStatusUpTo(ctx, data.ConversationID, data.MsgID, client.Role, client.ID, entity.StatusRead)
	if err != nil {
		log.Printf("HandleReadReceipt: bulk read update failed for conversation %s up to %s: %v", data.ConversationID, data.MsgID, err)
		return
	}

	if conversation.LastReadMsgID == nil {
		conversation.LastReadMsgID = make(map[string]string)
	}
	conversation.LastReadMsgID[readerKey] = data.MsgID
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}
	conversation.UnreadCount[readerKey] = 0
	if err := uc.conversationRepo.Update(ctx, conversation); err != nil {
		log.Printf("HandleReadReceipt: failed to persist read boundary for conversation %s: %v", conversation.ID, err)
	}

	if len(updated) == 0 {
		return
	}

	for _, msgID := range updated {
		uc.events.Publish(kafka.ChatEvent{
			Kind:           "status_changed",
			ConversationID: data.ConversationID,
			MsgID:          msgID,
			MsgStatus:      entity.StatusRead,
		})
	}

	// One consolidated event per original sender, not one per message.
	messages, err := uc.messageRepo.GetStatuses(ctx, data.ConversationID, updated)
	if err != nil {
		log.Printf("HandleReadReceipt: failed to load read messages for conversation %s: %v", data.ConversationID, err)
		return
	}
	bySender := make(map[string][]*entity.Message)
	for _, message := range messages {
		key := entity.IdentityKey(message.SenderType, message.SenderID)
		bySender[key] = append(bySender[key], message)
	}
	for _, group := range bySender {
		msgIDs := make([]string, 0, len(group))
		for _, message := range group {
			msgIDs = append(msgIDs, message.MsgID)
		}
		uc.registry.SendEvent(group[0].SenderType, group[0].SenderID, ws.EventMessagesBatchRead, ws.MessagesBatchReadData{
			ConversationID: data.ConversationID,
			MsgIDs:         msgIDs,
			MsgStatus:      entity.StatusRead,
		})
	}
}

func (uc *DeliveryUseCase) markSingleRead(ctx context.Context, conversationID, msgID string) {
	message, err := uc.messageRepo.GetByID(ctx, conversationID, msgID)
	if err != nil {
		log.Printf("HandleReadReceipt: message %s not found in conversation %s: %v", msgID, conversationID, err)
		return
	}
	if message.MsgStatus == entity.StatusRead || message.MsgStatus == entity.StatusFailed {
		return
	}

	if err := uc.messageRepo.UpdateStatus(ctx, conversationID, msgID, entity.StatusRead); err != nil {
		log.Printf("HandleReadReceipt: failed to mark message %s read: %v", msgID, err)
		return
	}
	message.MsgStatus = entity.StatusRead

	uc.events.Publish(kafka.ChatEvent{
		Kind:           "status_changed",
		ConversationID: conversationID,
		MsgID:          msgID,
		MsgStatus:      entity.StatusRead,
	})

	uc.registry.SendEvent(message.SenderType, message.SenderID, ws.EventAck, uc.ack(message, entity.StatusRead, entity.AckCodeRead))
}

// HandleOnline lazily creates the customer's conversation and schedules a
// one-shot backlog check for the identity.
func (uc *DeliveryUseCase) HandleOnline(ctx context.Context, client *ws.Client) {
	if client.Role == entity.RoleCustomer {
		uc.ensureConversation(ctx, client.Shop, client.ID)
	}

	_, err := uc.jobs.Enqueue(ctx, QueueOfflinePush, JobTypeOfflinePush, OfflinePushPayload{
		Role: client.Role,
		ID:   client.ID,
	}, redisq.Options{
		Attempts:  uc.jobAttempts,
		BackoffMs: uc.jobBackoffMs,
		Priority:  1, // reconnects jump ahead of periodic sweeps
	})
	if err != nil {
		log.Printf("HandleOnline: failed to enqueue offline push for %s: %v", client.Key(), err)
	}
}

// HandleOffline has nothing to tear down beyond the registry entry itself.
func (uc *DeliveryUseCase) HandleOffline(ctx context.Context, client *ws.Client) {
	log.Printf("Identity offline: %s", client.Key())
}

func (uc *DeliveryUseCase) ensureConversation(ctx context.Context, shop, customerID string) {
	_, err := uc.conversationRepo.GetByShopAndCustomer(ctx, shop, customerID)
	if err == nil {
		return
	}
	if !errors.Is(err, "NOT_FOUND") {
		log.Printf("HandleOnline: conversation lookup failed for shop %s customer %s: %v", shop, customerID, err)
		return
	}

	conversation := &entity.Conversation{
		Shop:          shop,
		CustomerID:    customerID,
		Status:        "open",
		LastMessageAt: time.Now(),
		UnreadCount:   make(map[string]int),
		LastReadMsgID: make(map[string]string),
	}
	if err := uc.conversationRepo.Create(ctx, conversation); err != nil {
		log.Printf("HandleOnline: failed to create conversation for shop %s customer %s: %v", shop, customerID, err)
	}
}

// GetUnreadMessages returns undelivered/unread messages addressed to the
// identity across its conversations. Agents see their shop's conversations,
// so shop is the lookup key for them, not their own id.
func (uc *DeliveryUseCase) GetUnreadMessages(ctx context.Context, role, id, shop string) ([]*entity.Message, error) {
	conversations, err := uc.conversationsForIdentity(ctx, role, id, shop)
	if err != nil {
		return nil, err
	}

	var unread []*entity.Message
	for _, conversation := range conversations {
		messages, err := uc.messageRepo.ListUnread(ctx, conversation.ID, role, id, 0)
		if err != nil {
			log.Printf("GetUnreadMessages: listing unread for conversation %s failed: %v", conversation.ID, err)
			continue
		}
		unread = append(unread, messages...)
	}
	return unread, nil
}

func (uc *DeliveryUseCase) conversationsForIdentity(ctx context.Context, role, id, shop string) ([]*entity.Conversation, error) {
	if role == entity.RoleCustomer {
		return uc.conversationRepo.ListByCustomer(ctx, id)
	}
	conversations, _, err := uc.conversationRepo.ListByShop(ctx, shop, 0, 0)
	return conversations, err
}

// ListConversations returns the identity's conversations, paginated for the
// shop-wide agent view.
func (uc *DeliveryUseCase) ListConversations(ctx context.Context, role, id, shop string, limit, offset int) ([]*entity.Conversation, int64, error) {
	if role == entity.RoleCustomer {
		conversations, err := uc.conversationRepo.ListByCustomer(ctx, id)
		return conversations, int64(len(conversations)), err
	}
	return uc.conversationRepo.ListByShop(ctx, shop, limit, offset)
}

// GetMessageStatus returns current statuses for explicitly queried messages.
func (uc *DeliveryUseCase) GetMessageStatus(ctx context.Context, conversationID string, msgIDs []string) ([]*entity.Message, error) {
	return uc.messageRepo.GetStatuses(ctx, conversationID, msgIDs)
}

// ListConversationMessages returns paginated reverse-chronological history.
func (uc *DeliveryUseCase) ListConversationMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	return uc.messageRepo.ListByConversation(ctx, conversationID, limit, offset)
}
