package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/merchantlabs/backoffice/internal/domain/order"
	"github.com/merchantlabs/backoffice/internal/event"
	"github.com/merchantlabs/backoffice/pkg/webhookclient"
)

// WebhookNotifier forwards order lifecycle events to an external webhook
// endpoint. It consumes from the outbox path, so deliveries survive process
// restarts and are retried with backoff.
type WebhookNotifier struct {
	client *webhookclient.Client
	logger *zap.Logger
}

func NewWebhookNotifier(client *webhookclient.Client, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{client: client, logger: logger}
}

// Register subscribes the notifier to the events it forwards.
func (n *WebhookNotifier) Register(d *event.Dispatcher) {
	if !n.client.Enabled() {
		n.logger.Info("webhook_notifier_disabled")
		return
	}
	d.Subscribe(order.OrderPlaced{}.EventName(), n.handleOrderPlaced)
	d.Subscribe(order.OrderStatusChanged{}.EventName(), n.handleOrderStatusChanged)
}

func (n *WebhookNotifier) handleOrderPlaced(ctx context.Context, evt event.Event) error {
	placed, ok := evt.(order.OrderPlaced)
	if !ok {
		return nil
	}
	if err := n.client.Deliver(ctx, placed.EventName(), placed); err != nil {
		n.logger.Warn("webhook_delivery_failed",
			zap.String("event", placed.EventName()),
			zap.Int64("order_id", placed.OrderID),
			zap.Error(err))
		return err
	}
	return nil
}

func (n *WebhookNotifier) handleOrderStatusChanged(ctx context.Context, evt event.Event) error {
	changed, ok := evt.(order.OrderStatusChanged)
	if !ok {
		return nil
	}
	if err := n.client.Deliver(ctx, changed.EventName(), changed); err != nil {
		n.logger.Warn("webhook_delivery_failed",
			zap.String("event", changed.EventName()),
			zap.Int64("order_id", changed.OrderID),
			zap.Error(err))
		return err
	}
	return nil
}
