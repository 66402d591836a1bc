// internal/service/notification/application/translator.go
package application

import "fmt"

// Translate 实现消息翻译器模式：把领域事件转成用户可读的文案。
// 未知事件类型走通用兜底，翻译永远不失败。
func Translate(eventType string, data map[string]any) string {
	orderID := stringField(data, "order_id", "Unknown")

	switch eventType {
	case "OrderCreated":
		return fmt.Sprintf("🆕 New order received! ID: %s. Total: $%v. Awaiting processing.",
			orderID, numberField(data, "total_amount"))
	case "OrderConfirmed":
		return fmt.Sprintf("✅ Order %s confirmed! Payment succeeded (Txn: %s). Preparing shipment.",
			orderID, stringField(data, "transaction_id", "N/A"))
	case "OrderRejected":
		return fmt.Sprintf("❌ Order %s failed. Reason: %s. Please check the system logs.",
			orderID, stringField(data, "reason", "unknown reason"))
	default:
		return fmt.Sprintf("ℹ️ Order %s update: %s", orderID, eventType)
	}
}

func stringField(data map[string]any, key, fallback string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func numberField(data map[string]any, key string) any {
	if v, ok := data[key]; ok {
		return v
	}
	return 0
}
