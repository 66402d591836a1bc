package interfaces

import (
	"context"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/events"
	"orderflow/internal/service/payment/application"
)

// RouteInventoryReserved 是支付服务唯一的入站绑定。
const RouteInventoryReserved = "inventory.InventoryReserved"

type EventHandler struct {
	step *application.ProcessPaymentStep
}

func NewEventHandler(step *application.ProcessPaymentStep) *EventHandler {
	return &EventHandler{step: step}
}

func (h *EventHandler) Handle(ctx context.Context, d eventbus.Delivery) error {
	var payload events.InventoryReserved
	if err := d.DecodeData(&payload); err != nil {
		return errors.Wrap(err, "decode InventoryReserved")
	}
	if payload.OrderID == "" {
		return errors.New("InventoryReserved without order_id")
	}
	return h.step.Execute(ctx, payload.OrderID, payload.TotalAmount, d.CorrelationID)
}
