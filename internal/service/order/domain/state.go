// internal/service/order/domain/state.go
package domain

// Status 定义了订单在 Saga 各阶段的生命周期状态
type Status string

const (
	StatusPending   Status = "PENDING"   // 订单已记录，Saga 进行中
	StatusReserved  Status = "RESERVED"  // 库存已预占，等待支付
	StatusConfirmed Status = "CONFIRMED" // 支付成功，订单确认
	StatusRejected  Status = "REJECTED"  // 库存不足或支付失败
	StatusCancelled Status = "CANCELLED" // 已取消 (用户主动或系统超时)
)

// StatusFor 把状态事件类型映射为内部状态，未知类型返回 false。
func StatusFor(eventType string) (Status, bool) {
	switch eventType {
	case "InventoryReserved":
		return StatusReserved, true
	case "OrderConfirmed":
		return StatusConfirmed, true
	case "OrderRejected":
		return StatusRejected, true
	default:
		return "", false
	}
}
