package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"shopchat/internal/domain/entity"
	ws "shopchat/internal/infrastructure/websocket"
)

type pushFixture struct {
	buffer      *fakeBuffer
	offlineRepo *fakeOfflineRepo
	registry    *fakeRegistry
	jobs        *fakeJobs
	uc          *OfflinePushUseCase
}

func newPushFixture(batchSize int64) *pushFixture {
	f := &pushFixture{
		buffer:      newFakeBuffer(),
		offlineRepo: newFakeOfflineRepo(),
		registry:    newFakeRegistry(),
		jobs:        &fakeJobs{},
	}
	f.uc = NewOfflinePushUseCase(f.buffer, f.offlineRepo, f.registry, f.jobs, batchSize, 100, 50)
	return f
}

func (f *pushFixture) seedBacklog(recipientKey string, count int) {
	for i := 0; i < count; i++ {
		message := &entity.Message{
			MsgID:          fmt.Sprintf("m%d", i),
			ConversationID: "conv-1",
			RecipientType:  entity.RoleAgent,
			RecipientID:    "agent-1",
			MsgStatus:      entity.StatusSent,
		}
		f.buffer.Push(context.Background(), recipientKey, message)
		f.offlineRepo.Create(context.Background(), &entity.OfflineMessageRecord{
			RecipientKey: recipientKey,
			Message:      *message,
		})
	}
}

func TestPushBatchSendsBoundedBatchInOrder(t *testing.T) {
	f := newPushFixture(10)
	recipientKey := entity.IdentityKey(entity.RoleAgent, "agent-1")
	f.seedBacklog(recipientKey, 25)
	f.registry.setOnline(entity.RoleAgent, "agent-1")

	assert.NoError(t, f.uc.PushBatch(context.Background(), entity.RoleAgent, "agent-1"))

	pushes := f.registry.eventsOfType(ws.EventOfflineMessages)
	assert.Len(t, pushes, 1)
	data := pushes[0].Data.(ws.OfflineMessagesData)
	assert.Len(t, data.Messages, 10)
	assert.Equal(t, int64(25), data.TotalCount)
	assert.Equal(t, "m0", data.Messages[0].MsgID)
	assert.Equal(t, "m9", data.Messages[9].MsgID)

	// Batch removed only after the push, remainder rescheduled with a delay
	n, _ := f.buffer.Len(context.Background(), recipientKey)
	assert.Equal(t, int64(15), n)
	assert.Equal(t, 1, f.jobs.count())
	assert.Equal(t, int64(50), f.jobs.jobs[0].Opts.DelayMs)

	// Durable records for the sent batch flagged
	pending, _ := f.offlineRepo.CountPending(context.Background(), recipientKey)
	assert.Equal(t, int64(15), pending)
}

func TestPushBatchDrainsCompletely(t *testing.T) {
	f := newPushFixture(10)
	recipientKey := entity.IdentityKey(entity.RoleAgent, "agent-1")
	f.seedBacklog(recipientKey, 25)
	f.registry.setOnline(entity.RoleAgent, "agent-1")

	// 25 messages at batch size 10 take three rounds
	for i := 0; i < 3; i++ {
		assert.NoError(t, f.uc.PushBatch(context.Background(), entity.RoleAgent, "agent-1"))
	}

	assert.Len(t, f.registry.eventsOfType(ws.EventOfflineMessages), 3)

	n, _ := f.buffer.Len(context.Background(), recipientKey)
	assert.Zero(t, n)
	pending, _ := f.offlineRepo.CountPending(context.Background(), recipientKey)
	assert.Zero(t, pending)

	// The last round had nothing left, so only two reschedules happened
	assert.Equal(t, 2, f.jobs.count())
}

func TestPushBatchRecipientOffline(t *testing.T) {
	f := newPushFixture(10)
	recipientKey := entity.IdentityKey(entity.RoleAgent, "agent-1")
	f.seedBacklog(recipientKey, 5)

	assert.NoError(t, f.uc.PushBatch(context.Background(), entity.RoleAgent, "agent-1"))

	// Backlog untouched until the identity actually connects
	assert.Empty(t, f.registry.events)
	n, _ := f.buffer.Len(context.Background(), recipientKey)
	assert.Equal(t, int64(5), n)
}

func TestPushBatchKeepsBacklogWhenSendFails(t *testing.T) {
	f := newPushFixture(10)
	recipientKey := entity.IdentityKey(entity.RoleAgent, "agent-1")
	f.seedBacklog(recipientKey, 5)
	f.registry.setOnline(entity.RoleAgent, "agent-1")
	f.registry.failSend = true

	assert.NoError(t, f.uc.PushBatch(context.Background(), entity.RoleAgent, "agent-1"))

	// Disconnect between the online check and the push keeps the batch
	n, _ := f.buffer.Len(context.Background(), recipientKey)
	assert.Equal(t, int64(5), n)
	pending, _ := f.offlineRepo.CountPending(context.Background(), recipientKey)
	assert.Equal(t, int64(5), pending)
}

func TestPushBatchReloadsFromDurableStore(t *testing.T) {
	f := newPushFixture(10)
	recipientKey := entity.IdentityKey(entity.RoleAgent, "agent-1")
	f.registry.setOnline(entity.RoleAgent, "agent-1")

	// Durable records exist but the fast buffer was flushed
	for i := 0; i < 3; i++ {
		f.offlineRepo.Create(context.Background(), &entity.OfflineMessageRecord{
			RecipientKey: recipientKey,
			Message:      entity.Message{MsgID: fmt.Sprintf("m%d", i), ConversationID: "conv-1"},
		})
	}

	assert.NoError(t, f.uc.PushBatch(context.Background(), entity.RoleAgent, "agent-1"))

	pushes := f.registry.eventsOfType(ws.EventOfflineMessages)
	assert.Len(t, pushes, 1)
	assert.Len(t, pushes[0].Data.(ws.OfflineMessagesData).Messages, 3)

	pending, _ := f.offlineRepo.CountPending(context.Background(), recipientKey)
	assert.Zero(t, pending)
}

func TestPushBatchEmptyBacklogIsNoOp(t *testing.T) {
	f := newPushFixture(10)
	f.registry.setOnline(entity.RoleAgent, "agent-1")

	assert.NoError(t, f.uc.PushBatch(context.Background(), entity.RoleAgent, "agent-1"))

	assert.Empty(t, f.registry.events)
	assert.Zero(t, f.jobs.count())
}

func TestHandleJobDecodesPayload(t *testing.T) {
	f := newPushFixture(10)
	recipientKey := entity.IdentityKey(entity.RoleAgent, "agent-1")
	f.seedBacklog(recipientKey, 2)
	f.registry.setOnline(entity.RoleAgent, "agent-1")

	payload, err := json.Marshal(OfflinePushPayload{Role: entity.RoleAgent, ID: "agent-1"})
	assert.NoError(t, err)

	assert.NoError(t, f.uc.HandleJob(context.Background(), &entity.Job{
		Type:    JobTypeOfflinePush,
		Payload: payload,
	}))

	assert.Len(t, f.registry.eventsOfType(ws.EventOfflineMessages), 1)
}

func TestHandleJobRejectsMalformedPayload(t *testing.T) {
	f := newPushFixture(10)

	err := f.uc.HandleJob(context.Background(), &entity.Job{
		Type:    JobTypeOfflinePush,
		Payload: []byte("not json"),
	})
	assert.Error(t, err)
}

func TestSweepEnqueuesOnlineIdentitiesOnly(t *testing.T) {
	f := newPushFixture(10)
	f.seedBacklog(entity.IdentityKey(entity.RoleAgent, "agent-1"), 1)
	f.seedBacklog(entity.IdentityKey(entity.RoleCustomer, "cust-1"), 1)
	f.registry.setOnline(entity.RoleAgent, "agent-1")

	f.uc.sweep(context.Background())

	assert.Equal(t, 1, f.jobs.count())
	payload := f.jobs.jobs[0].Payload.(OfflinePushPayload)
	assert.Equal(t, entity.RoleAgent, payload.Role)
	assert.Equal(t, "agent-1", payload.ID)
}
