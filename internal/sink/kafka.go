package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"traffic-harvester/internal/config"
	"traffic-harvester/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaSink publishes one message per event keyed by the event identity, so
// a compacted topic keeps a single record per occurrence even when the whole
// corpus is re-sent on retry.
type kafkaSink struct {
	w         messageWriter
	batchSize int
}

func NewKafka(cfg config.KafkaConfig) Sink {
	to := cfg.Timeout
	if to == 0 {
		to = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              max(1, cfg.BatchSize),
		WriteTimeout:           to,
		AllowAutoTopicCreation: true,
	}
	return newKafkaSink(w, cfg.BatchSize)
}

func newKafkaSink(w messageWriter, batchSize int) *kafkaSink {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &kafkaSink{w: w, batchSize: batchSize}
}

func (k *kafkaSink) Name() string { return "kafka" }

func (k *kafkaSink) Push(ctx context.Context, events []model.Event) error {
	for start := 0; start < len(events); start += k.batchSize {
		end := min(start+k.batchSize, len(events))
		msgs := make([]kafka.Message, 0, end-start)
		for _, e := range events[start:end] {
			m, err := eventMessage(e)
			if err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
		if err := k.w.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("kafka write [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (k *kafkaSink) Close() error { return k.w.Close() }

func eventMessage(e model.Event) (kafka.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	m := kafka.Message{
		Key:   []byte(e.Key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if e.Timestamp > 0 {
		m.Time = time.UnixMilli(e.Timestamp)
	}
	return m, nil
}
