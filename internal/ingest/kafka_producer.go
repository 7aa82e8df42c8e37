package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/carpool/internal/models"
)

// Event is one lifecycle transition published to the event stream so
// other services (notifications, analytics) can react without polling.
type Event struct {
	Kind  string         `json:"kind"` // "trip" or "delivery"
	ID    int64          `json:"id"`
	From  string         `json:"from"`
	To    string         `json:"to"`
	Actor models.UserID  `json:"actor,omitempty"`
	At    time.Time      `json:"at"`
	Extra map[string]any `json:"extra,omitempty"`
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

// PublishTransition keys messages by kind:id so one entity's events stay
// ordered within a partition.
func (k *KafkaProducer) PublishTransition(ev Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b, _ := json.Marshal(ev)
	key := fmt.Sprintf("%s:%d", ev.Kind, ev.ID)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
