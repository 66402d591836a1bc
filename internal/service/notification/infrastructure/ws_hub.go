package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/notification/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// Hub 维护所有活跃的 WebSocket 连接并负责消息广播。
// 订阅方是运维面板之类的实时观察者，所有通知全量推送。
type Hub struct {
	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	lock       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 64),
	}
}

// Run 是 Hub 的事件循环，随服务启动，ctx 取消时退出。
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client] = struct{}{}
			h.lock.Unlock()
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.lock.Unlock()
		case message := <-h.broadcast:
			h.lock.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 写缓冲满说明客户端已死，交给 unregister 清理
				}
			}
			h.lock.RUnlock()
		case <-ctx.Done():
			return
		}
	}
}

// ServeWS 把一个 HTTP 请求升级为 WebSocket 连接并注册到 Hub。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// wsClient 是一个 WebSocket 连接的代表
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		// 只消费心跳等入站消息，内容忽略
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// PushChannel 把通知广播给所有连接的 WebSocket 客户端。
type PushChannel struct {
	hub *Hub
}

func NewPushChannel(hub *Hub) *PushChannel {
	return &PushChannel{hub: hub}
}

func (p *PushChannel) Name() string { return "websocket" }

type pushMessage struct {
	EventType     string `json:"event_type"`
	OrderID       string `json:"order_id"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

func (p *PushChannel) Send(_ context.Context, n domain.Notification) error {
	raw, err := json.Marshal(pushMessage{
		EventType:     n.EventType,
		OrderID:       n.OrderID,
		Message:       n.Message,
		CorrelationID: n.CorrelationID,
	})
	if err != nil {
		return err
	}
	select {
	case p.hub.broadcast <- raw:
		return nil
	default:
		// Hub 背压：丢弃而不是阻塞消费循环
		return nil
	}
}
