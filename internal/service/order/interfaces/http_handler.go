package interfaces

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
)

// HeaderIdempotencyKey 客户端重试创建请求时携带的幂等键。
const HeaderIdempotencyKey = "X-Idempotency-Key"

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	creator *application.CreateOrderService
	query   *application.OrderQuery
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(creator *application.CreateOrderService, query *application.OrderQuery) *OrderHandler {
	return &OrderHandler{creator: creator, query: query}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/orders", h.createOrderHandler)
	mux.HandleFunc("/orders/", h.getOrderHandler)
}

type orderItemDTO struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type createOrderRequest struct {
	CustomerID string         `json:"customer_id"`
	Items      []orderItemDTO `json:"items"`
}

type createOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type orderResponse struct {
	OrderID      string         `json:"order_id"`
	CustomerID   string         `json:"customer_id"`
	Status       string         `json:"status"`
	TotalAmount  float64        `json:"total_amount"`
	Items        []orderItemDTO `json:"items"`
	RejectReason string         `json:"reject_reason,omitempty"`
}

func (h *OrderHandler) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CustomerID == "" || len(req.Items) == 0 {
		http.Error(w, "customer_id and items are required", http.StatusBadRequest)
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}

	order, err := h.creator.CreateOrder(ctx, req.CustomerID, items, r.Header.Get(HeaderIdempotencyKey))
	if err != nil {
		switch {
		case errors.Is(err, application.ErrDuplicateRequest):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrEmptyOrder):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Ctx(ctx).Error().Err(err).Msg("Create order failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createOrderResponse{
		OrderID: order.OrderID,
		Status:  string(order.Status),
		Message: "Order processed successfully",
	})
}

func (h *OrderHandler) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	orderID := strings.TrimPrefix(r.URL.Path, "/orders/")
	if orderID == "" || strings.Contains(orderID, "/") {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	order, err := h.query.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("Get order failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	items := make([]orderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDTO{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orderResponse{
		OrderID:      order.OrderID,
		CustomerID:   order.CustomerID,
		Status:       string(order.Status),
		TotalAmount:  order.TotalAmount,
		Items:        items,
		RejectReason: order.RejectReason,
	})
}
