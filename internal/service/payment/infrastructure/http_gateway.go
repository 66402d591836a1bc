package infrastructure

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/payment/domain"
)

type chargeRequest struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
}

type chargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Declined      bool   `json:"declined"`
	Reason        string `json:"reason"`
}

// HTTPPaymentGateway 通过 HTTP 调用外部支付网关。
// 4xx / declined 响应翻译成 domain.DeclinedError（业务终态），
// 连接失败和 5xx 原样返回，交给熔断器统计。
type HTTPPaymentGateway struct {
	client    *httpclient.Client
	chargeURL string
}

func NewHTTPPaymentGateway(client *httpclient.Client, chargeURL string) *HTTPPaymentGateway {
	return &HTTPPaymentGateway{client: client, chargeURL: chargeURL}
}

func (g *HTTPPaymentGateway) Charge(ctx context.Context, orderID string, amount float64) (string, error) {
	var resp chargeResponse
	err := g.client.PostJSON(ctx, g.chargeURL, chargeRequest{OrderID: orderID, Amount: amount}, &resp)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests {
			return "", &domain.DeclinedError{Reason: statusErr.Body}
		}
		return "", errors.Wrap(err, "charge request")
	}
	if resp.Declined {
		return "", &domain.DeclinedError{Reason: resp.Reason}
	}
	if resp.TransactionID == "" {
		return "", errors.New("gateway returned empty transaction id")
	}
	return resp.TransactionID, nil
}
