package kafka

import (
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// EventTopic receives persisted-message and status-transition events for the
// downstream sync/analytics consumers. Those consumers are outside this
// service.
const EventTopic = "chat-events"

type ChatEvent struct {
	Kind           string    `json:"kind"` // "message_persisted", "status_changed"
	ConversationID string    `json:"conversation_id"`
	MsgID          string    `json:"msg_id"`
	MsgStatus      string    `json:"msg_status"`
	Timestamp      time.Time `json:"timestamp"`
}

// Producer publishes chat audit events. A nil *Producer is a valid no-op so
// callers never have to branch on whether Kafka is configured.
type Producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{producer: producer}, nil
}

// Publish sends one event keyed by conversation so per-conversation order is
// kept within a partition. Errors are logged, never propagated: the audit
// stream must not affect delivery.
func (p *Producer) Publish(event ChatEvent) {
	if p == nil {
		return
	}

	event.Timestamp = time.Now()
	value, err := json.Marshal(event)
	if err != nil {
		log.Printf("kafka: failed to marshal event for %s: %v", event.MsgID, err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: EventTopic,
		Key:   sarama.StringEncoder(event.ConversationID),
		Value: sarama.ByteEncoder(value),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Printf("kafka: failed to publish %s event for %s: %v", event.Kind, event.MsgID, err)
	}
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
