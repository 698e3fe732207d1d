package notify

import (
	"context"
	"fmt"

	"novaflow/pkg/kafka"

	"github.com/goccy/go-json"
)

// Kafka 所有流程结果都写入 topic，供下游统计
type Kafka struct {
	producer kafka.ProducerService
}

func NewKafka(producer kafka.ProducerService) *Kafka {
	return &Kafka{producer: producer}
}

func (k *Kafka) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode outcome event: %w", err)
	}
	if err := k.producer.Produce(ctx, []byte(ev.Symbol), payload); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}
