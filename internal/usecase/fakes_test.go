package usecase

import (
	"context"
	"fmt"
	"sync"

	"shopchat/internal/domain/entity"
	"shopchat/internal/infrastructure/kafka"
	"shopchat/internal/infrastructure/redisq"
	"shopchat/pkg/errors"
)

var fakeStatusRank = map[string]int{
	entity.StatusSending:   0,
	entity.StatusSent:      1,
	entity.StatusDelivered: 2,
	entity.StatusRead:      3,
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[string]*entity.Message
	order     []string // insertion order of keys
	createErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*entity.Message)}
}

func messageKey(conversationID, msgID string) string {
	return conversationID + "/" + msgID
}

func (r *fakeMessageRepo) Create(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	key := messageKey(message.ConversationID, message.MsgID)
	if _, exists := r.messages[key]; exists {
		return errors.Conflict("message already exists")
	}
	stored := *message
	r.messages[key] = &stored
	r.order = append(r.order, key)
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, conversationID, msgID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, ok := r.messages[messageKey(conversationID, msgID)]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	copied := *message
	return &copied, nil
}

func (r *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*entity.Message
	for i := len(r.order) - 1; i >= 0; i-- {
		message := r.messages[r.order[i]]
		if message.ConversationID == conversationID {
			copied := *message
			all = append(all, &copied)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *fakeMessageRepo) UpdateStatus(ctx context.Context, conversationID, msgID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, ok := r.messages[messageKey(conversationID, msgID)]
	if !ok {
		return errors.NotFound("Message", nil)
	}
	message.MsgStatus = status
	return nil
}

func (r *fakeMessageRepo) UpdateStatusUpTo(ctx context.Context, conversationID, msgID, recipientRole, recipientID, status string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.messages[messageKey(conversationID, msgID)]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}

	var updated []string
	for _, key := range r.order {
		message := r.messages[key]
		if message.ConversationID != conversationID ||
			message.RecipientType != recipientRole ||
			message.RecipientID != recipientID {
			continue
		}
		if message.Timestamp.After(target.Timestamp) {
			continue
		}
		if message.MsgStatus == entity.StatusFailed || fakeStatusRank[message.MsgStatus] >= fakeStatusRank[status] {
			continue
		}
		message.MsgStatus = status
		updated = append(updated, message.MsgID)
	}
	return updated, nil
}

func (r *fakeMessageRepo) GetStatuses(ctx context.Context, conversationID string, msgIDs []string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Message
	for _, msgID := range msgIDs {
		if message, ok := r.messages[messageKey(conversationID, msgID)]; ok {
			copied := *message
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeMessageRepo) ListUnread(ctx context.Context, conversationID, recipientRole, recipientID string, limit int) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Message
	for _, key := range r.order {
		message := r.messages[key]
		if message.ConversationID != conversationID ||
			message.RecipientType != recipientRole ||
			message.RecipientID != recipientID {
			continue
		}
		if message.MsgStatus != entity.StatusSent && message.MsgStatus != entity.StatusDelivered {
			continue
		}
		copied := *message
		result = append(result, &copied)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*entity.Conversation
	nextID        int
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[string]*entity.Conversation)}
}

func (r *fakeConversationRepo) Create(ctx context.Context, conversation *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conversation.ID == "" {
		r.nextID++
		conversation.ID = fmt.Sprintf("conv-%d", r.nextID)
	}
	stored := *conversation
	r.conversations[conversation.ID] = &stored
	return nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	copied := *conversation
	return &copied, nil
}

func (r *fakeConversationRepo) GetByShopAndCustomer(ctx context.Context, shop, customerID string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, conversation := range r.conversations {
		if conversation.Shop == shop && conversation.CustomerID == customerID {
			copied := *conversation
			return &copied, nil
		}
	}
	return nil, errors.NotFound("Conversation", nil)
}

func (r *fakeConversationRepo) ListByShop(ctx context.Context, shop string, limit, offset int) ([]*entity.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Conversation
	for _, conversation := range r.conversations {
		if conversation.Shop == shop {
			copied := *conversation
			result = append(result, &copied)
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeConversationRepo) ListByCustomer(ctx context.Context, customerID string) ([]*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Conversation
	for _, conversation := range r.conversations {
		if conversation.CustomerID == customerID {
			copied := *conversation
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeConversationRepo) Update(ctx context.Context, conversation *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[conversation.ID]; !ok {
		return errors.NotFound("Conversation", nil)
	}
	stored := *conversation
	r.conversations[conversation.ID] = &stored
	return nil
}

type fakeOfflineRepo struct {
	mu        sync.Mutex
	records   []*entity.OfflineMessageRecord
	createErr error
}

func newFakeOfflineRepo() *fakeOfflineRepo {
	return &fakeOfflineRepo{}
}

func (r *fakeOfflineRepo) Create(ctx context.Context, record *entity.OfflineMessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	stored := *record
	r.records = append(r.records, &stored)
	return nil
}

func (r *fakeOfflineRepo) ListPending(ctx context.Context, recipientKey string, limit int) ([]*entity.OfflineMessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.OfflineMessageRecord
	for _, record := range r.records {
		if record.RecipientKey != recipientKey || record.IsDelivered {
			continue
		}
		copied := *record
		result = append(result, &copied)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *fakeOfflineRepo) CountPending(ctx context.Context, recipientKey string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, record := range r.records {
		if record.RecipientKey == recipientKey && !record.IsDelivered {
			count++
		}
	}
	return count, nil
}

func (r *fakeOfflineRepo) MarkDelivered(ctx context.Context, recipientKey string, msgIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make(map[string]bool, len(msgIDs))
	for _, msgID := range msgIDs {
		ids[msgID] = true
	}
	for _, record := range r.records {
		if record.RecipientKey == recipientKey && ids[record.Message.MsgID] {
			record.IsDelivered = true
		}
	}
	return nil
}

type sentEvent struct {
	Role      string
	ID        string
	EventType string
	Data      interface{}
}

// fakeRegistry stands in for the websocket manager. failSend simulates a
// disconnect between the IsOnline check and the actual push.
type fakeRegistry struct {
	mu       sync.Mutex
	online   map[string]bool
	events   []sentEvent
	failSend bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{online: make(map[string]bool)}
}

func (r *fakeRegistry) setOnline(role, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[entity.IdentityKey(role, id)] = true
}

func (r *fakeRegistry) IsOnline(role, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[entity.IdentityKey(role, id)]
}

func (r *fakeRegistry) SendEvent(role, id, eventType string, data interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failSend || !r.online[entity.IdentityKey(role, id)] {
		return false
	}
	r.events = append(r.events, sentEvent{Role: role, ID: id, EventType: eventType, Data: data})
	return true
}

func (r *fakeRegistry) eventsOfType(eventType string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []sentEvent
	for _, event := range r.events {
		if event.EventType == eventType {
			result = append(result, event)
		}
	}
	return result
}

type fakeBuffer struct {
	mu       sync.Mutex
	backlogs map[string][]*entity.Message
	pushErr  error
}

func newFakeBuffer() *fakeBuffer {
	return &fakeBuffer{backlogs: make(map[string][]*entity.Message)}
}

func (b *fakeBuffer) Push(ctx context.Context, recipientKey string, message *entity.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pushErr != nil {
		return b.pushErr
	}
	copied := *message
	b.backlogs[recipientKey] = append(b.backlogs[recipientKey], &copied)
	return nil
}

func (b *fakeBuffer) Peek(ctx context.Context, recipientKey string, n int64) ([]*entity.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	backlog := b.backlogs[recipientKey]
	if int64(len(backlog)) < n {
		n = int64(len(backlog))
	}
	result := make([]*entity.Message, 0, n)
	for _, message := range backlog[:n] {
		copied := *message
		result = append(result, &copied)
	}
	return result, nil
}

func (b *fakeBuffer) Trim(ctx context.Context, recipientKey string, n int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	backlog := b.backlogs[recipientKey]
	if int64(len(backlog)) <= n {
		delete(b.backlogs, recipientKey)
		return nil
	}
	b.backlogs[recipientKey] = backlog[n:]
	return nil
}

func (b *fakeBuffer) Len(ctx context.Context, recipientKey string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.backlogs[recipientKey])), nil
}

func (b *fakeBuffer) Identities(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var keys []string
	for key := range b.backlogs {
		keys = append(keys, key)
	}
	return keys, nil
}

type enqueuedJob struct {
	Queue   string
	JobType string
	Payload interface{}
	Opts    redisq.Options
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []enqueuedJob
}

func (j *fakeJobs) Enqueue(ctx context.Context, queue, jobType string, payload interface{}, opts redisq.Options) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jobs = append(j.jobs, enqueuedJob{Queue: queue, JobType: jobType, Payload: payload, Opts: opts})
	return "job-1", nil
}

func (j *fakeJobs) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.jobs)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []kafka.ChatEvent
}

func (e *fakeEvents) Publish(event kafka.ChatEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *fakeEvents) ofKind(kind string) []kafka.ChatEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result []kafka.ChatEvent
	for _, event := range e.events {
		if event.Kind == kind {
			result = append(result, event)
		}
	}
	return result
}
