package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	InvalidationTopic = "catalog.invalidation"
)

// InvalidationEvent announces that a mutation succeeded upstream and which
// store it touched. Peer gateway replicas re-derive the descriptor set from
// the mutation type, so the static invalidation table stays the single source
// of truth on every node.
type InvalidationEvent struct {
	EventID   string    `json:"event_id"`
	Mutation  string    `json:"mutation"`
	StoreID   string    `json:"store_id"`
	Origin    string    `json:"origin"`
	EventTime time.Time `json:"event_time"`
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	origin   string
	logger   *logrus.Logger
}

// NewKafkaProducer connects a sync producer. origin identifies this gateway
// instance so consumers can skip events they published themselves.
func NewKafkaProducer(brokers, origin string, logger *logrus.Logger) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), config)
	if err != nil {
		return nil, err
	}

	return &KafkaProducer{
		producer: producer,
		origin:   origin,
		logger:   logger,
	}, nil
}

func (p *KafkaProducer) PublishInvalidation(mutation, storeID string) error {
	event := InvalidationEvent{
		EventID:   uuid.New().String(),
		Mutation:  mutation,
		StoreID:   storeID,
		Origin:    p.origin,
		EventTime: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: InvalidationTopic,
		Key:   sarama.StringEncoder(storeID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).Error("Failed to send invalidation event to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     InvalidationTopic,
		"partition": partition,
		"offset":    offset,
		"mutation":  mutation,
		"store_id":  storeID,
	}).Info("Invalidation event published to Kafka")

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
