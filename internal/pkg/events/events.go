// internal/pkg/events/events.go
package events

import "encoding/json"

// 共享事件主题。所有服务都发布到这一个主题，
// 各自的消费组按路由模式筛选。
const (
	TopicOrders        = "orders"
	TopicInventory     = "inventory"
	TopicPayments      = "payments"
	TopicNotifications = "notifications"
)

// 跨服务事件类型。路由键形如 "{topic}.{event_type}"。
const (
	TypeOrderCreated      = "OrderCreated"
	TypeInventoryReserved = "InventoryReserved"
	TypeOrderConfirmed    = "OrderConfirmed"
	TypeOrderRejected     = "OrderRejected"
)

// OrderItem 是订单事件里的一个条目。
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderCreated 由订单服务在命令层持久化订单后发布，启动一条 Saga。
type OrderCreated struct {
	OrderID     string      `json:"order_id"`
	CustomerID  string      `json:"customer_id"`
	TotalAmount float64     `json:"total_amount"`
	Items       []OrderItem `json:"items"`
	Status      string      `json:"status"`
}

// InventoryReserved 由库存服务在全部条目扣减成功后发布。
// total_amount 原样回传，下游支付不需要回查订单服务。
type InventoryReserved struct {
	OrderID     string  `json:"order_id"`
	TotalAmount float64 `json:"total_amount"`
}

// OrderConfirmed 由支付服务在网关扣款成功后发布。
type OrderConfirmed struct {
	OrderID       string  `json:"order_id"`
	Status        string  `json:"status"`
	TransactionID string  `json:"transaction_id"`
	TotalAmount   float64 `json:"total_amount"`
}

// OrderRejected 是 Saga 分支终止时的补偿事件，
// 库存不足和支付拒绝都用它，reason 说明原因。
type OrderRejected struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// Data 把一个事件载荷结构体转成信封要求的 map 形式。
func Data(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
