// internal/service/payment/domain/gateway.go
package domain

import "context"

// DeclinedError 表示网关业务性拒绝扣款（余额不足、风控等）。
// 它是终态：不重试，Saga 走补偿分支。
// 与之相对，网关的传输层错误（超时、5xx）原样返回，
// 由熔断器统计并最终通过死信重放。
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return "payment declined: " + e.Reason
}

// PaymentGateway 是支付网关的出站端口。
// Charge 成功时返回网关侧的交易号。
type PaymentGateway interface {
	Charge(ctx context.Context, orderID string, amount float64) (transactionID string, err error)
}
