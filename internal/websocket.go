package internal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// 系統設計問題：
//   多名玩家在同一場突襲中，如何即時收到 Boss 血量、Fever、結算？
//
// 核心挑戰：
//   1. 實時通信：房間狀態變更需要立即推送給所有玩家
//   2. 連接管理：處理斷線、重連、多設備登入（新連線接手舊連線）
//   3. 心跳機制：檢測死連接（網絡異常、客戶端崩潰）
//   4. 並發廣播：核心在房間鎖內廣播，發送端絕不能阻塞
//
// 設計方案：
//   ✅ WebSocket - 單一 /ws 端點，先 authenticate 再進行配對
//   ✅ Hub 模式 - 集中管理連接、玩家身分、房間廣播範圍
//   ✅ Ping/Pong 心跳 - 檢測死連接（54s/60s）
//   ✅ 緩衝 channel - 異步發送（不阻塞），緩衝滿時丟棄
//   ✅ Token bucket - 每條連線限制訊息速率

// maxMessageSize 單一入站訊息上限
const maxMessageSize = 4096

// presenceTimeout Presence 操作的逾時
const presenceTimeout = 3 * time.Second

// WebSocketHub WebSocket 連接中心
//
// Hub 模式設計：
//   - 實作 Gateway：核心透過 BroadcastToRoom / SendToConnection 推送事件
//   - 實作 RoomScopes：配對引擎在房間鎖內把玩家的連線加入廣播範圍
//   - 把入站事件轉成配對與生命週期操作
//
// 系統設計考量：
//
//  1. 三個索引：
//     - conns：connID → 連接（單播）
//     - players：playerID → 連接（認證後；新連線會取代舊連線）
//     - rooms：roomID → connID → 連接（房間廣播）
//
//  2. 並發安全：RWMutex
//     - 廣播只取讀鎖；註冊/註銷/訂閱取寫鎖
//     - 鎖順序：房間鎖 → hub.mu，hub.mu 內絕不呼叫核心
//     - Send channel 只在寫鎖內關閉，讀鎖內投遞前檢查 closed
type WebSocketHub struct {
	matchmaker *Matchmaker
	lifecycle  *LifecycleController
	registry   *Registry
	presence   Presence
	verifier   *TokenVerifier
	cfg        WebSocketConfig
	logger     *slog.Logger
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	conns   map[string]*Connection            // connID -> Connection
	players map[string]*Connection            // playerID -> Connection
	rooms   map[string]map[string]*Connection // roomID -> connID -> Connection

	ctx    context.Context
	cancel context.CancelFunc
}

// Connection WebSocket 連接
type Connection struct {
	ID       string
	PlayerID string // 認證後設定（hub.mu 保護）
	RoomID   string // 目前的廣播範圍（hub.mu 保護）
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *WebSocketHub
	LastPing time.Time

	limiter *rate.Limiter
	closed  bool // hub.mu 保護
	mu      sync.Mutex
}

// 入站訊息
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type authenticateRequest struct {
	Token string `json:"token"`
}

type matchRequest struct {
	BossLevel  int `json:"bossLevel"`
	MaxPlayers int `json:"maxPlayers"`
}

type joinRoomRequest struct {
	InviteCode string `json:"inviteCode"`
}

// NewWebSocketHub 創建 WebSocket Hub
func NewWebSocketHub(presence Presence, verifier *TokenVerifier, cfg WebSocketConfig, logger *slog.Logger) *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHub{
		presence: presence,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns:   make(map[string]*Connection),
		players: make(map[string]*Connection),
		rooms:   make(map[string]map[string]*Connection),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Attach 連接配對引擎與生命週期控制器
//
// Hub 同時是核心的 Gateway，因此核心建立後才能接上。
func (hub *WebSocketHub) Attach(m *Matchmaker, lc *LifecycleController) {
	hub.matchmaker = m
	hub.lifecycle = lc
	hub.registry = m.registry
	m.UseScopes(hub)
}

// ServeWS 處理 WebSocket 連接
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	c := &Connection{
		ID:       uuid.NewString(),
		Conn:     conn,
		Send:     make(chan []byte, hub.cfg.SendBuffer),
		Hub:      hub,
		LastPing: time.Now(),
		limiter:  rate.NewLimiter(rate.Limit(hub.cfg.MessagesPerSecond), hub.cfg.Burst),
	}

	hub.register(c)

	go c.writePump()
	go c.readPump()

	hub.logger.Info("WebSocket 連接建立", "conn_id", c.ID, "remote", r.RemoteAddr)
}

// BroadcastToRoom 廣播事件到房間內所有連線
func (hub *WebSocketHub) BroadcastToRoom(roomID, event string, payload any) {
	message, ok := hub.encode(roomID, event, payload)
	if !ok {
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for _, c := range hub.rooms[roomID] {
		hub.enqueue(c, message)
	}
}

// SendToConnection 單播事件
func (hub *WebSocketHub) SendToConnection(connID, event string, payload any) {
	message, ok := hub.encode("", event, payload)
	if !ok {
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if c, exists := hub.conns[connID]; exists {
		hub.enqueue(c, message)
	}
}

// JoinScope 把玩家目前的連線加入房間廣播範圍
func (hub *WebSocketHub) JoinScope(roomID, playerID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	c, ok := hub.players[playerID]
	if !ok {
		return
	}
	hub.detach(c)

	if hub.rooms[roomID] == nil {
		hub.rooms[roomID] = make(map[string]*Connection)
	}
	hub.rooms[roomID][c.ID] = c
	c.RoomID = roomID
}

// LeaveScope 把玩家的連線移出房間廣播範圍
func (hub *WebSocketHub) LeaveScope(roomID, playerID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if c, ok := hub.players[playerID]; ok && c.RoomID == roomID {
		hub.detach(c)
	}
}

// DetachRoom 房間移除後清除其廣播範圍（Registry.OnRemove）
func (hub *WebSocketHub) DetachRoom(roomID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for _, c := range hub.rooms[roomID] {
		c.RoomID = ""
	}
	delete(hub.rooms, roomID)
}

// Stop 停止 WebSocket Hub
func (hub *WebSocketHub) Stop() {
	hub.cancel()

	// 關閉所有連接
	hub.mu.Lock()
	for _, c := range hub.conns {
		hub.closeSend(c)
		c.Conn.Close()
	}
	hub.conns = make(map[string]*Connection)
	hub.players = make(map[string]*Connection)
	hub.rooms = make(map[string]map[string]*Connection)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// ConnectionStats 連線統計
func (hub *WebSocketHub) ConnectionStats() map[string]int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	return map[string]int{
		"connections":   len(hub.conns),
		"authenticated": len(hub.players),
		"rooms":         len(hub.rooms),
	}
}

// register 註冊連接
func (hub *WebSocketHub) register(c *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.conns[c.ID] = c
}

// unregister 取消註冊連接
//
// 回傳連線認證過的玩家，以及玩家目前是否仍由這條連線代表（未被接手）。
func (hub *WebSocketHub) unregister(c *Connection) (playerID string, current bool) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if actual, exists := hub.conns[c.ID]; !exists || actual != c {
		return "", false
	}
	delete(hub.conns, c.ID)

	playerID = c.PlayerID
	if playerID != "" && hub.players[playerID] == c {
		delete(hub.players, playerID)
		current = true
	}
	hub.detach(c)
	hub.closeSend(c)
	return playerID, current
}

// bindPlayer 認證成功後記錄玩家的連線，回傳被取代的舊連線
func (hub *WebSocketHub) bindPlayer(c *Connection, playerID string) *Connection {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	old := hub.players[playerID]
	if old == c {
		old = nil
	}
	if c.PlayerID != "" && c.PlayerID != playerID && hub.players[c.PlayerID] == c {
		delete(hub.players, c.PlayerID)
	}
	c.PlayerID = playerID
	hub.players[playerID] = c
	return old
}

// playerOf 連線已認證的玩家
func (hub *WebSocketHub) playerOf(c *Connection) string {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return c.PlayerID
}

// touch 心跳時延長 Presence 的有效期
func (hub *WebSocketHub) touch(c *Connection) {
	playerID := hub.playerOf(c)
	if playerID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(hub.ctx, presenceTimeout)
	defer cancel()

	if err := hub.presence.Touch(ctx, c.ID, playerID); err != nil {
		hub.logger.Warn("延長 Presence 失敗", "conn_id", c.ID, "player_id", playerID, "error", err)
	}
}

// disconnect 關閉 Send 讓 writePump 送出關閉訊息，readPump 隨之結束並清理
func (hub *WebSocketHub) disconnect(c *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.closeSend(c)
}

// detach 移出目前的房間廣播範圍（需持有 hub.mu）
func (hub *WebSocketHub) detach(c *Connection) {
	if c.RoomID == "" {
		return
	}
	if roomConns, ok := hub.rooms[c.RoomID]; ok {
		delete(roomConns, c.ID)
		if len(roomConns) == 0 {
			delete(hub.rooms, c.RoomID)
		}
	}
	c.RoomID = ""
}

// closeSend 關閉 Send channel（需持有 hub.mu 寫鎖）
func (hub *WebSocketHub) closeSend(c *Connection) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// enqueue 非阻塞投遞（需持有 hub.mu）
func (hub *WebSocketHub) enqueue(c *Connection, message []byte) {
	if c.closed {
		return
	}
	select {
	case c.Send <- message:
	default:
		// 慢客戶端不能拖累整個房間
		hub.logger.Warn("連接緩衝區滿",
			"conn_id", c.ID,
			"player_id", c.PlayerID,
			"room_id", c.RoomID)
	}
}

func (hub *WebSocketHub) encode(roomID, event string, payload any) ([]byte, bool) {
	message, err := json.Marshal(Envelope{
		Event:     event,
		RoomID:    roomID,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		hub.logger.Error("序列化事件失敗", "event", event, "room_id", roomID, "error", err)
		return nil, false
	}
	return message, true
}

// cleanup 連線結束：解除 Presence 並離開房間
//
// 身分以 Hub 自己記錄的 PlayerID 為準，Presence 失效時仍能離開房間。
// 已被新連線接手的玩家（本機或其他實例）保留房間，只解除舊連線的綁定。
func (hub *WebSocketHub) cleanup(c *Connection) {
	playerID, current := hub.unregister(c)

	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	if err := hub.presence.Unbind(ctx, c.ID); err != nil {
		hub.logger.Warn("解除 Presence 失敗", "conn_id", c.ID, "player_id", playerID, "error", err)
	}
	if playerID == "" {
		return
	}

	if !current {
		hub.logger.Info("連線已被接手，保留房間", "conn_id", c.ID, "player_id", playerID)
		return
	}

	// 其他實例上的新連線；查詢失敗時視為沒有被接手
	connID, err := hub.presence.ConnectionOf(ctx, playerID)
	switch {
	case err == nil && connID != c.ID:
		hub.logger.Info("連線已被其他實例接手，保留房間", "conn_id", c.ID, "player_id", playerID, "new_conn_id", connID)
		return
	case err != nil && !errors.Is(err, ErrNotAuthenticated):
		hub.logger.Warn("查詢 Presence 失敗，依本機記錄離開房間", "conn_id", c.ID, "player_id", playerID, "error", err)
	}

	roomID, err := hub.matchmaker.Leave(playerID)
	if err != nil {
		hub.logger.Error("斷線離開房間失敗", "player_id", playerID, "error", err)
		return
	}

	hub.logger.Info("WebSocket 連接關閉",
		"conn_id", c.ID,
		"player_id", playerID,
		"room_id", roomID)
}

// readPump 讀取客戶端消息
//
// 系統設計：心跳機制（讀取端）
//
//  1. 超時設置：PongWait（預設 60 秒）
//     - 期間內沒有收到任何消息（包括 Pong），關閉連接
//     - 配合 writePump 的 PingPeriod（預設 54 秒）
//
//  2. Pong 處理器：收到 Pong → 重置超時、更新 LastPing、延長 Presence 有效期
//
//  3. 結束時一律執行 cleanup：斷線等同離開房間
func (c *Connection) readPump() {
	hub := c.Hub
	defer func() {
		hub.cleanup(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(hub.cfg.PongWait)); err != nil {
		hub.logger.Error("設置讀取期限失敗", "error", err)
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(hub.cfg.PongWait)); err != nil {
			hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		hub.touch(c)
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.Error("WebSocket 讀取錯誤", "error", err, "conn_id", c.ID)
			}
			break
		}

		if messageType == websocket.TextMessage {
			hub.handleMessage(c, message)
		}
	}
}

// writePump 寫入消息到客戶端
//
// 系統設計：心跳機制（發送端）
//   - 每 PingPeriod 發送 Ping，客戶端自動回覆 Pong
//   - Send 被關閉時送出 CloseMessage 並結束
//   - 一次喚醒時批量寫出佇列中的消息
func (c *Connection) writePump() {
	hub := c.Hub
	ticker := time.NewTicker(hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(hub.cfg.WriteWait)); err != nil {
				hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，嘗試送出關閉消息（連接可能已關閉）
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量發送隊列中的消息
			n := len(c.Send)
			for range n {
				next, ok := <-c.Send
				if !ok {
					_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, next); err != nil {
					hub.logger.Error("發送消息失敗", "error", err)
					return
				}
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(hub.cfg.WriteWait)); err != nil {
				hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 處理客戶端消息
func (hub *WebSocketHub) handleMessage(c *Connection, raw []byte) {
	if !c.limiter.Allow() {
		hub.SendToConnection(c.ID, EventError, MessagePayload{Message: "請求過於頻繁"})
		return
	}

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		hub.logger.Debug("解析客戶端消息失敗", "error", err, "conn_id", c.ID)
		hub.SendToConnection(c.ID, EventError, MessagePayload{Message: "無效的消息格式"})
		return
	}

	if msg.Event == "authenticate" {
		hub.handleAuthenticate(c, msg.Data)
		return
	}

	ctx, cancel := context.WithTimeout(hub.ctx, presenceTimeout)
	playerID, err := hub.presence.PlayerOf(ctx, c.ID)
	cancel()
	if err != nil {
		if msg.Event == "ping" {
			return
		}
		errorEvent := EventError
		if msg.Event == "randomMatch" {
			errorEvent = EventMatchError
		}
		hub.SendToConnection(c.ID, errorEvent, MessagePayload{Message: ErrNotAuthenticated.Error()})
		return
	}

	switch msg.Event {
	case "ping":
		hub.SendToConnection(c.ID, EventPong, struct{}{})
	case "randomMatch":
		hub.handleRandomMatch(c, playerID, msg.Data)
	case "createRoom":
		hub.handleCreateRoom(c, playerID, msg.Data)
	case "joinRoom":
		hub.handleJoinRoom(c, playerID, msg.Data)
	case "cancelMatch":
		hub.handleCancelMatch(c, playerID)
	case "updateRunningData":
		var data RunningData
		if !hub.decode(c, msg.Data, &data) {
			return
		}
		hub.reply(c, hub.lifecycle.UpdateRunningData(playerID, data))
	case "useItem":
		hub.reply(c, hub.lifecycle.UseItem(playerID))
	case "submitResult":
		var result RunningResult
		if !hub.decode(c, msg.Data, &result) {
			return
		}
		hub.reply(c, hub.lifecycle.SubmitResult(playerID, result))
	default:
		hub.logger.Debug("收到未知消息類型", "event", msg.Event, "conn_id", c.ID, "player_id", playerID)
		hub.SendToConnection(c.ID, EventError, MessagePayload{Message: "未知的事件: " + msg.Event})
	}
}

// handleAuthenticate 驗證令牌並綁定身分；同一玩家的舊連線會被斷開
func (hub *WebSocketHub) handleAuthenticate(c *Connection, data json.RawMessage) {
	var req authenticateRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Token == "" {
		hub.SendToConnection(c.ID, EventAuthenticated, AuthenticatedPayload{Error: ErrInvalidToken.Error()})
		hub.disconnect(c)
		return
	}

	playerID, err := hub.verifier.Verify(req.Token)
	if err != nil {
		hub.logger.Info("認證失敗", "conn_id", c.ID, "error", err)
		hub.SendToConnection(c.ID, EventAuthenticated, AuthenticatedPayload{Error: ErrInvalidToken.Error()})
		hub.disconnect(c)
		return
	}

	// 一條連線只代表一位玩家；換身分必須重新連線
	if bound := hub.playerOf(c); bound != "" && bound != playerID {
		hub.logger.Info("拒絕切換身分", "conn_id", c.ID, "player_id", bound, "requested", playerID)
		hub.SendToConnection(c.ID, EventAuthenticated, AuthenticatedPayload{Error: ErrAlreadyAuthenticated.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(hub.ctx, presenceTimeout)
	defer cancel()

	if _, err := hub.presence.Bind(ctx, c.ID, playerID); err != nil {
		hub.logger.Error("綁定 Presence 失敗", "conn_id", c.ID, "player_id", playerID, "error", err)
		hub.SendToConnection(c.ID, EventAuthenticated, AuthenticatedPayload{Error: "暫時無法認證"})
		return
	}

	if old := hub.bindPlayer(c, playerID); old != nil {
		hub.logger.Info("新連線接手玩家", "player_id", playerID, "old_conn_id", old.ID, "conn_id", c.ID)
		hub.disconnect(old)
	}

	// 重新連線：接回原本房間的廣播範圍
	if roomID, ok := hub.registry.RoomOf(playerID); ok {
		_ = hub.registry.View(roomID, func(r *Room) {
			if r.Player(playerID) != nil {
				hub.JoinScope(r.ID, playerID)
			}
		})
	}

	hub.SendToConnection(c.ID, EventAuthenticated, AuthenticatedPayload{Success: true})

	hub.logger.Info("玩家認證成功", "conn_id", c.ID, "player_id", playerID)
}

func (hub *WebSocketHub) handleRandomMatch(c *Connection, playerID string, data json.RawMessage) {
	var req matchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		hub.SendToConnection(c.ID, EventMatchError, MessagePayload{Message: "無效的消息格式"})
		return
	}

	snap, err := hub.matchmaker.FindOrCreateRandomMatch(playerID, req.BossLevel, req.MaxPlayers)
	if err != nil {
		hub.SendToConnection(c.ID, EventMatchError, MessagePayload{Message: clientMessage(err)})
		return
	}

	hub.SendToConnection(c.ID, EventMatchStatus, RoomInfoPayload{
		RoomID:         snap.ID,
		CurrentPlayers: snap.PlayerCount(),
		MaxPlayers:     snap.MaxPlayers,
	})
	hub.announceJoin(snap.ID, playerID)
}

func (hub *WebSocketHub) handleCreateRoom(c *Connection, playerID string, data json.RawMessage) {
	var req matchRequest
	if !hub.decode(c, data, &req) {
		return
	}

	snap, err := hub.matchmaker.CreatePrivateRoom(playerID, req.BossLevel, req.MaxPlayers)
	if err != nil {
		hub.reply(c, err)
		return
	}

	hub.SendToConnection(c.ID, EventRoomCreated, RoomInfoPayload{
		RoomID:         snap.ID,
		InviteCode:     snap.InviteCode,
		CurrentPlayers: snap.PlayerCount(),
		MaxPlayers:     snap.MaxPlayers,
	})
}

func (hub *WebSocketHub) handleJoinRoom(c *Connection, playerID string, data json.RawMessage) {
	var req joinRoomRequest
	if !hub.decode(c, data, &req) {
		return
	}

	snap, err := hub.matchmaker.JoinByInviteCode(playerID, req.InviteCode)
	if err != nil {
		hub.reply(c, err)
		return
	}

	hub.SendToConnection(c.ID, EventRoomJoined, RoomInfoPayload{
		RoomID:         snap.ID,
		CurrentPlayers: snap.PlayerCount(),
		MaxPlayers:     snap.MaxPlayers,
	})
	hub.announceJoin(snap.ID, playerID)
}

func (hub *WebSocketHub) handleCancelMatch(c *Connection, playerID string) {
	if _, err := hub.matchmaker.Leave(playerID); err != nil {
		hub.reply(c, err)
		return
	}
	hub.SendToConnection(c.ID, EventMatchCancelled, MessagePayload{Message: "已取消配對"})
}

// announceJoin 廣播加入並檢查是否開始遊戲
func (hub *WebSocketHub) announceJoin(roomID, playerID string) {
	err := hub.lifecycle.PlayerJoined(roomID, playerID)
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		hub.logger.Error("廣播加入失敗", "room_id", roomID, "player_id", playerID, "error", err)
	}
}

func (hub *WebSocketHub) decode(c *Connection, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		hub.SendToConnection(c.ID, EventError, MessagePayload{Message: "無效的消息格式"})
		return false
	}
	return true
}

// reply 錯誤轉成單播 error 事件
func (hub *WebSocketHub) reply(c *Connection, err error) {
	if err == nil {
		return
	}
	hub.SendToConnection(c.ID, EventError, MessagePayload{Message: clientMessage(err)})
}

// clientMessage 把錯誤轉成給客戶端看的訊息，不洩漏內部細節
func clientMessage(err error) string {
	if errors.Is(err, ErrInvalidRoomConfig) {
		return err.Error()
	}
	for _, known := range []error{
		ErrRoomNotFound,
		ErrInvalidInviteCode,
		ErrRoomFull,
		ErrGameAlreadyInProgress,
		ErrGameNotFinished,
		ErrPlayerAlreadyInRoom,
		ErrNotAuthenticated,
		ErrMatchCancelled,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "伺服器內部錯誤"
}
