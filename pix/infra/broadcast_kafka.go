package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pix-lifecycle/pix/domain"

	"github.com/IBM/sarama"
)

// KafkaBroadcaster grava cada snapshot num tópico Kafka.
//
// É só um destino de publicação (auditoria, outros serviços); quem consome
// o tópico é externo. O dashboard ao vivo assina pelo Hub ou pelo Redis.
type KafkaBroadcaster struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducer cria um SyncProducer que espera confirmação de todas as réplicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	var addrs []string
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	p, err := sarama.NewSyncProducer(addrs, cfg)
	if err != nil {
		return nil, fmt.Errorf("start kafka producer: %w", err)
	}
	return p, nil
}

func NewKafkaBroadcaster(producer sarama.SyncProducer, topic string) *KafkaBroadcaster {
	if strings.TrimSpace(topic) == "" {
		topic = domain.DashboardTopic
	}
	return &KafkaBroadcaster{producer: producer, topic: topic}
}

func (b *KafkaBroadcaster) Publish(_ context.Context, s domain.Snapshot) error {
	data, err := json.Marshal(domain.NewEvent(s))
	if err != nil {
		return fmt.Errorf("encode dashboard event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(domain.DashboardEvent),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", b.topic, err)
	}
	return nil
}

func (b *KafkaBroadcaster) Close() error {
	if b == nil || b.producer == nil {
		return nil
	}
	return b.producer.Close()
}

var _ domain.Broadcaster = (*KafkaBroadcaster)(nil)
