package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   大廳狀態由聊天平台呈現，但看板或其他工具也想即時知道大廳的變化。
//
// 設計方案：
//   ✅ Hub 模式 - 集中管理所有觀察者連接
//   ✅ 事件通道 - 直接消費 Manager 的生命週期事件，不輪詢
//   ✅ Ping/Pong 心跳 - 檢測死連接（54s/60s）
//   ✅ 緩衝 channel - 異步發送，慢客戶端不拖累廣播

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHub WebSocket 連接中心
type WebSocketHub struct {
	manager     *Manager
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	connections map[string]*Connection // connID -> Connection
	mu          sync.RWMutex
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// Connection 觀察者連接
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *WebSocketHub
	LastPing  time.Time
	mu        sync.Mutex
	closeOnce sync.Once // 確保 channel 只關閉一次
}

// feedMessage 推送給觀察者的訊息
type feedMessage struct {
	Type   string `json:"type"`
	Status Status `json:"status,omitempty"`
	Lobby  *Lobby `json:"lobby,omitempty"`
	Event  *Event `json:"event,omitempty"`
}

// NewWebSocketHub 創建 WebSocket Hub
func NewWebSocketHub(manager *Manager, logger *slog.Logger) *WebSocketHub {
	hub := &WebSocketHub{
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 唯讀資料流，不檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[string]*Connection),
		stopCh:      make(chan struct{}),
	}

	// 啟動事件監聽
	hub.wg.Add(1)
	go hub.eventLoop()

	return hub
}

// ServeWS 處理 WebSocket 連接
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	connection := &Connection{
		ID:       uuid.NewString(),
		Conn:     conn,
		Send:     make(chan []byte, 64),
		Hub:      hub,
		LastPing: time.Now(),
	}

	// 快照先放進緩衝，之後的事件一定排在它後面
	if snapshot := hub.snapshot(); snapshot != nil {
		connection.Send <- snapshot
	}
	hub.register(connection)

	go connection.writePump()
	go connection.readPump()

	hub.logger.Info("WebSocket 連接建立", "conn_id", connection.ID)
}

// snapshot 目前槽位狀態訊息
func (hub *WebSocketHub) snapshot() []byte {
	msg := feedMessage{Type: "snapshot", Status: StatusEmpty}
	if lobby, ok := hub.manager.Get(); ok {
		msg.Status = lobby.Status()
		msg.Lobby = &lobby
	}
	data, err := json.Marshal(msg)
	if err != nil {
		hub.logger.Error("序列化快照失敗", "error", err)
		return nil
	}
	return data
}

// register 註冊連接
func (hub *WebSocketHub) register(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.connections[conn.ID] = conn
}

// unregister 取消註冊連接
func (hub *WebSocketHub) unregister(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if actual, exists := hub.connections[conn.ID]; exists && actual == conn {
		delete(hub.connections, conn.ID)
		conn.closeSend()
	}
}

// broadcast 廣播到所有觀察者
func (hub *WebSocketHub) broadcast(message []byte) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for _, conn := range hub.connections {
		select {
		case conn.Send <- message:
		default:
			hub.logger.Warn("連接緩衝區滿", "conn_id", conn.ID)
		}
	}
}

// eventLoop 監聽生命週期事件
func (hub *WebSocketHub) eventLoop() {
	defer hub.wg.Done()

	for {
		select {
		case event := <-hub.manager.Events():
			message, err := json.Marshal(feedMessage{Type: "event", Event: &event})
			if err != nil {
				hub.logger.Error("序列化事件失敗", "error", err)
				continue
			}
			hub.broadcast(message)
		case <-hub.stopCh:
			return
		}
	}
}

// Stop 停止 WebSocket Hub
func (hub *WebSocketHub) Stop() {
	hub.stopOnce.Do(func() {
		close(hub.stopCh)
	})
	hub.wg.Wait()

	// 關閉所有連接
	hub.mu.Lock()
	for _, conn := range hub.connections {
		conn.closeSend()
		conn.Conn.Close()
	}
	hub.connections = make(map[string]*Connection)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// ConnectionCount 獲取連接數
func (hub *WebSocketHub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.connections)
}

func (c *Connection) closeSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

// enqueue 非阻塞寫入發送緩衝
//
// closeSend 只在持有 hub.mu 寫鎖時呼叫，這裡持有讀鎖並確認仍在註冊中，
// 不會寫入已關閉的通道。
func (c *Connection) enqueue(message []byte) {
	if message == nil {
		return
	}

	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()

	if c.Hub.connections[c.ID] != c {
		return
	}
	select {
	case c.Send <- message:
	default:
	}
}

// readPump 讀取客戶端消息
//
// 60 秒內沒有收到任何消息（包括 Pong）就關閉連接，
// 搭配 writePump 每 54 秒一次的 Ping。
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.Hub.logger.Error("設置讀取期限失敗", "error", err)
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.Hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket 讀取錯誤", "error", err, "conn_id", c.ID)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// writePump 寫入消息到客戶端
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，嘗試發送關閉訊息
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 處理客戶端消息：ping 與 snapshot
func (c *Connection) handleMessage(message []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		c.Hub.logger.Debug("解析客戶端消息失敗", "error", err, "conn_id", c.ID)
		return
	}

	switch msg.Type {
	case "ping":
		response, _ := json.Marshal(map[string]string{"type": "pong"})
		c.enqueue(response)
	case "snapshot":
		c.enqueue(c.Hub.snapshot())
	default:
		c.Hub.logger.Debug("收到未知消息類型", "type", msg.Type, "conn_id", c.ID)
	}
}
