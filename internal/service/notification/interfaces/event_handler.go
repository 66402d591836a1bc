package interfaces

import (
	"context"

	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/service/notification/application"
)

// Routes 通知服务的入站绑定：三类状态事件，来源不限。
var Routes = []string{
	"*.OrderCreated",
	"*.OrderConfirmed",
	"*.OrderRejected",
}

type EventHandler struct {
	service *application.NotifyService
}

func NewEventHandler(service *application.NotifyService) *EventHandler {
	return &EventHandler{service: service}
}

func (h *EventHandler) Handle(ctx context.Context, d eventbus.Delivery) error {
	return h.service.Notify(ctx, d.Envelope.EventType, d.CorrelationID, d.Envelope.Data)
}
