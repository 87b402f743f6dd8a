package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes tasks to the side-effect topic. Delivery is
// at-most-once from the caller's point of view; consumers own retries.
type KafkaPublisher struct {
	Writer *kafka.Writer
}

// NewKafkaPublisher builds a producer for the task topic.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, task Task) error {
	value, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%d", task.Kind, task.TripID)),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.Writer.Close()
}
