package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/dustin/showfinder/config"
)

const defaultKafkaTopic = "showfinder.search-audit"

// KafkaWriter publishes events to a Kafka topic keyed by user
type KafkaWriter struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaWriter dials the configured brokers with an idempotent sync producer
func NewKafkaWriter(cfg *config.AuditConfig) (*KafkaWriter, error) {
	brokers := splitList(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 10
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.ClientID = strings.TrimSpace(cfg.KafkaClient)
	if sc.ClientID == "" {
		sc.ClientID = "showfinder"
	}

	p, err := sarama.NewSyncProducer(brokers, sc)
	if err != nil {
		return nil, err
	}
	return NewKafkaWriterWithProducer(p, cfg.KafkaTopic), nil
}

// NewKafkaWriterWithProducer wraps an existing producer
func NewKafkaWriterWithProducer(p sarama.SyncProducer, topic string) *KafkaWriter {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = defaultKafkaTopic
	}
	return &KafkaWriter{producer: p, topic: topic}
}

func (w *KafkaWriter) Name() string {
	return "kafka"
}

func (w *KafkaWriter) Write(ctx context.Context, event Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := "anonymous"
	if event.UserID != nil {
		key = event.UserID.String()
	}

	_, _, err = w.producer.SendMessage(&sarama.ProducerMessage{
		Topic: w.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	})
	return err
}

// Close releases the producer
func (w *KafkaWriter) Close() error {
	if w == nil || w.producer == nil {
		return nil
	}
	return w.producer.Close()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
