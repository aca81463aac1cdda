// Package kafka publishes revision notifications and audit outbox rows to Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"taxcase/internal/revision/models"
)

const headerEventType = "event_type"

const (
	// DefaultDeliveryTimeout caps how long a record may wait for a broker
	// ack, retries included.
	DefaultDeliveryTimeout = 5 * time.Second
	defaultRequestTimeout  = 3 * time.Second
)

// Producer is the subset of *kgo.Client used for synchronous produce.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// NewClient connects a franz-go client to brokers.
func NewClient(brokers []string, opts ...kgo.Opt) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	all := append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(5),
		kgo.RecordDeliveryTimeout(DefaultDeliveryTimeout),
		kgo.ProduceRequestTimeout(defaultRequestTimeout),
	}, opts...)
	client, err := kgo.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("kafka: new client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates topic when it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Message is the JSON payload of a revision notification record.
type Message struct {
	EventID     string     `json:"event_id"`
	Type        string     `json:"type"`
	RevisionID  string     `json:"revision_id"`
	TargetKind  string     `json:"target_kind"`
	TargetID    string     `json:"target_id"`
	RequesterID string     `json:"requester_id"`
	DeciderID   string     `json:"decider_id,omitempty"`
	State       string     `json:"state"`
	OccurredAt  time.Time  `json:"occurred_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// Publisher is a notify.Sink writing one record per notification, keyed by
// revision id so every event of a revision lands on the same partition.
type Publisher struct {
	producer Producer
	topic    string
	newID    func() string
}

func NewPublisher(producer Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic, newID: uuid.NewString}
}

func (p *Publisher) Publish(ctx context.Context, n models.Notification) error {
	record, err := p.record(n)
	if err != nil {
		return err
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka: publish %s: %w", n.Type(), err)
	}
	return nil
}

func (p *Publisher) record(n models.Notification) (*kgo.Record, error) {
	snap := n.Snapshot()
	msg := Message{
		EventID:     p.newID(),
		Type:        string(n.Type()),
		RevisionID:  snap.ID.String(),
		TargetKind:  string(snap.Target.Kind),
		TargetID:    snap.Target.ID,
		RequesterID: snap.RequesterID.String(),
		State:       string(snap.State),
		OccurredAt:  n.OccurredAt().UTC(),
		DecidedAt:   snap.DecidedAt,
	}
	if snap.DeciderID != nil {
		msg.DeciderID = snap.DeciderID.String()
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("kafka: encode %s: %w", n.Type(), err)
	}
	return &kgo.Record{
		Topic: p.topic,
		Key:   []byte(msg.RevisionID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(msg.Type)},
		},
	}, nil
}

// TopicWriter produces raw key/value pairs to a fixed topic. The audit outbox
// relay uses it.
type TopicWriter struct {
	producer Producer
	topic    string
}

func NewTopicWriter(producer Producer, topic string) *TopicWriter {
	return &TopicWriter{producer: producer, topic: topic}
}

func (w *TopicWriter) Produce(ctx context.Context, key, value []byte) error {
	record := &kgo.Record{Topic: w.topic, Key: key, Value: value}
	if err := w.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce to %s: %w", w.topic, err)
	}
	return nil
}
