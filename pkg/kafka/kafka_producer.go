package kafka

import (
	"context"
	"time"

	"novaflow/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Kafka 生产者服务
// 定义接口，方便测试和替换
type ProducerService interface {
	Produce(ctx context.Context, key, value []byte) error
	Close()
}

type kafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer 一个 topic 一个 writer，流程结果事件量很小
func NewKafkaProducer(brokerURL, topic string) ProducerService {
	return &kafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokerURL),
			Topic:                  topic,
			Balancer:               &kafka.Hash{}, // 同一个币种进入同一个 Partition
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *kafkaProducer) Produce(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

func (p *kafkaProducer) Close() {
	if err := p.writer.Close(); err != nil {
		logger.Errorf("Error closing kafka writer: %v", err)
	}
}
