package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/James-Hooson/Bonsai-Biz/pkg/contracts"
	"github.com/James-Hooson/Bonsai-Biz/pkg/outbox"
)

var ErrDisabled = errors.New("kafka disabled")

type Client struct {
	Brokers []string
}

func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewWriter leaves Topic unset; every message carries its own.
func (c *Client) NewWriter() *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func (c *Client) NewReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.Brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPublisher sends outbox rows keyed by order id, so events for one order
// land on one partition.
type OutboxPublisher struct {
	Writer MessageWriter
}

func (p *OutboxPublisher) Publish(ctx context.Context, rec outbox.Record) error {
	if p.Writer == nil {
		return ErrDisabled
	}
	return p.Writer.WriteMessages(ctx, Message(rec))
}

func Message(rec outbox.Record) kafka.Message {
	return kafka.Message{
		Topic: rec.Topic,
		Key:   []byte(rec.Key),
		Value: rec.Payload,
		Time:  rec.CreatedAt.UTC(),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(rec.EventID)},
		},
	}
}

// DecodeEvent reads a message written by OutboxPublisher.
func DecodeEvent(msg kafka.Message) (contracts.Event, error) {
	var evt contracts.Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return contracts.Event{}, fmt.Errorf("decode event at offset %d: %w", msg.Offset, err)
	}
	return evt, nil
}
