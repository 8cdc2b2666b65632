package kafka

import (
	"context"
	"strings"
	"time"

	k "github.com/segmentio/kafka-go"

	"github.com/fieldlabs/profile-service/internal/platform/log"
)

type Producer struct {
	writer *k.Writer
	log    *log.Logger
}

// NewProducer builds a hash-partitioned writer so events for one profile
// land on the same partition in order.
func NewProducer(brokersCSV, topic string, logger *log.Logger) *Producer {
	brokers := strings.Split(brokersCSV, ",")

	return &Producer{
		writer: &k.Writer{
			Addr:         k.TCP(brokers...),
			Topic:        topic,
			Balancer:     &k.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: k.RequireOne,
		},
		log: logger,
	}
}

func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(
		ctx,
		k.Message{
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) Close() error {
	p.log.Info("closing kafka producer")

	return p.writer.Close()
}
