package interfaces

import (
	"context"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/service/order/application"
)

// Routes 订单投影的入站绑定：任何来源的状态事件都接收。
var Routes = []string{
	"*.InventoryReserved",
	"*.OrderConfirmed",
	"*.OrderRejected",
}

// EventHandler 把状态事件投递翻译成投影调用。
type EventHandler struct {
	projection *application.StatusProjection
}

func NewEventHandler(projection *application.StatusProjection) *EventHandler {
	return &EventHandler{projection: projection}
}

func (h *EventHandler) Handle(ctx context.Context, d eventbus.Delivery) error {
	var payload struct {
		OrderID string `json:"order_id"`
		Reason  string `json:"reason"`
	}
	if err := d.DecodeData(&payload); err != nil {
		return errors.Wrap(err, "decode status event")
	}
	if payload.OrderID == "" {
		return errors.New("status event without order_id")
	}
	return h.projection.ApplyStatusEvent(ctx, d.Envelope.EventType, payload.OrderID, payload.Reason)
}
