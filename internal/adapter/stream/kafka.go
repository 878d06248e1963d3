package stream

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/merchantlabs/backoffice/internal/config"
	"github.com/merchantlabs/backoffice/internal/domain/order"
	"github.com/merchantlabs/backoffice/internal/event"
)

// OrderForwarder publishes accepted orders onto a Kafka topic for downstream
// systems (fulfilment, analytics). It consumes from the outbox path, so a
// broker outage only delays delivery.
type OrderForwarder struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewOrderForwarder returns nil when no brokers are configured.
func NewOrderForwarder(cfg *config.Config, logger *zap.Logger) *OrderForwarder {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("order_forwarder_disabled")
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaOrderTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &OrderForwarder{writer: writer, logger: logger}
}

// Register subscribes the forwarder to order placement events.
func (f *OrderForwarder) Register(d *event.Dispatcher) {
	if f == nil {
		return
	}
	d.Subscribe(order.OrderPlaced{}.EventName(), f.handleOrderPlaced)
}

func (f *OrderForwarder) handleOrderPlaced(ctx context.Context, evt event.Event) error {
	placed, ok := evt.(order.OrderPlaced)
	if !ok {
		return nil
	}

	value, err := json.Marshal(placed)
	if err != nil {
		return err
	}

	// Keyed by customer so one customer's orders stay ordered per partition.
	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(placed.CustomerID, 10)),
		Value: value,
	})
	if err != nil {
		f.logger.Warn("order_forward_failed",
			zap.Int64("order_id", placed.OrderID),
			zap.Error(err))
		return err
	}
	return nil
}

func (f *OrderForwarder) Close() error {
	if f == nil {
		return nil
	}
	return f.writer.Close()
}
