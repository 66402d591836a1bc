package interfaces

import (
	"context"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/events"
	"orderflow/internal/service/inventory/application"
	"orderflow/internal/service/inventory/domain"
)

// RouteOrderCreated 是库存服务唯一的入站绑定。
const RouteOrderCreated = "orders.OrderCreated"

// EventHandler 把总线投递翻译成应用层调用。
type EventHandler struct {
	step *application.ReserveInventoryStep
}

func NewEventHandler(step *application.ReserveInventoryStep) *EventHandler {
	return &EventHandler{step: step}
}

// Handle 实现 eventbus.Handler。
// 载荷畸形时返回错误，让消费者把消息送入死信主题。
func (h *EventHandler) Handle(ctx context.Context, d eventbus.Delivery) error {
	var payload events.OrderCreated
	if err := d.DecodeData(&payload); err != nil {
		return errors.Wrap(err, "decode OrderCreated")
	}
	if payload.OrderID == "" {
		return errors.New("OrderCreated without order_id")
	}

	items := make([]domain.ReservationItem, 0, len(payload.Items))
	for _, it := range payload.Items {
		items = append(items, domain.ReservationItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	return h.step.Execute(ctx, payload.OrderID, items, payload.TotalAmount, d.CorrelationID)
}
