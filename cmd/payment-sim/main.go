// cmd/payment-sim/main.go
// 独立的支付网关模拟器。支付服务通过 HTTP 访问它，
// FAULT_RATE 注入随机瞬态故障，用来演示熔断和死信重放。
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/payment/domain"
	"orderflow/internal/service/payment/infrastructure"
)

const serviceName = "payment-sim"

type chargeRequest struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
}

type chargeResponse struct {
	TransactionID string `json:"transaction_id,omitempty"`
	Declined      bool   `json:"declined,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func main() {
	faultRate := 0.2
	if v := os.Getenv("FAULT_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			faultRate = f
		}
	}
	gateway := infrastructure.NewSimulatedGateway(faultRate, time.Now().UnixNano())

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8090,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) ([]bootstrap.Task, error) {
			appCtx.Mux.HandleFunc("/charge", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
					return
				}
				var req chargeRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				// 模拟网络延迟
				time.Sleep(100 * time.Millisecond)

				txn, err := gateway.Charge(r.Context(), req.OrderID, req.Amount)
				w.Header().Set("Content-Type", "application/json")
				if err != nil {
					if declined, ok := err.(*domain.DeclinedError); ok {
						json.NewEncoder(w).Encode(chargeResponse{Declined: true, Reason: declined.Reason})
						return
					}
					logger.Ctx(r.Context()).Warn().Err(err).Str("order_id", req.OrderID).Msg("Simulated gateway fault")
					http.Error(w, "gateway temporarily unavailable", http.StatusServiceUnavailable)
					return
				}
				json.NewEncoder(w).Encode(chargeResponse{TransactionID: txn})
			})
			return nil, nil
		},
	})
}
