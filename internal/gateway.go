package internal

// Gateway 廣播閘道
//
// 核心只需要兩種能力：對房間內所有人廣播、對單一連線單播。
// 實作必須是非阻塞的，因為呼叫端可能持有房間鎖。
type Gateway interface {
	BroadcastToRoom(roomID, event string, payload any)
	SendToConnection(connID, event string, payload any)
}

// RoomScopes 房間廣播範圍
//
// 在房間鎖內呼叫：加入與訂閱是原子的，新玩家不會錯過緊接著的 gameStart。
type RoomScopes interface {
	JoinScope(roomID, playerID string)
	LeaveScope(roomID, playerID string)
}

// 事件名稱
const (
	// 房間廣播
	EventPlayerJoined      = "playerJoined"
	EventPlayerLeft        = "playerLeft"
	EventGameReady         = "gameReady"
	EventGameStart         = "gameStart"
	EventPlayerDataUpdated = "playerDataUpdated"
	EventGameStatusUpdated = "gameStatusUpdated"
	EventFeverStarted      = "feverTimeStarted"
	EventFeverEnded        = "feverTimeEnded"
	EventGameOver          = "gameOver"
	EventGameResult        = "gameResult"

	// 單播
	EventAuthenticated  = "authenticated"
	EventMatchStatus    = "matchStatus"
	EventRoomCreated    = "roomCreated"
	EventRoomJoined     = "roomJoined"
	EventMatchCancelled = "matchCancelled"
	EventPong           = "pong"
	EventError          = "error"
	EventMatchError     = "matchError"
)

// AuthenticatedPayload 認證結果
type AuthenticatedPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// GameReadyPayload 人數到齊
type GameReadyPayload struct {
	Message string   `json:"message"`
	Players []Player `json:"players"`
}

// GameStartPayload 遊戲開始
type GameStartPayload struct {
	RoomID     string   `json:"roomId"`
	Message    string   `json:"message"`
	BossHealth int      `json:"bossHealth"`
	Players    []Player `json:"players"`
}

// OccupancyPayload 玩家進出房間
type OccupancyPayload struct {
	UserID         string `json:"userId"`
	CurrentPlayers int    `json:"currentPlayers"`
	MaxPlayers     int    `json:"maxPlayers"`
}

// RunningDataPayload 跑步數據更新
type RunningDataPayload struct {
	UserID       string  `json:"userId"`
	Distance     float64 `json:"distance"`
	ItemUseCount int     `json:"itemUseCount"`
}

// GameStatusPayload 道具使用後的房間狀態
type GameStatusPayload struct {
	BossHealth      int    `json:"bossHealth"`
	FeverTimeActive bool   `json:"feverTimeActive"`
	UserID          string `json:"userId"`
	ItemUseCount    int    `json:"itemUseCount"`
}

// FeverStartedPayload Fever 開始
type FeverStartedPayload struct {
	FeverTimeActive bool `json:"feverTimeActive"`
	Duration        int  `json:"duration"` // 秒
}

// MessagePayload 純訊息通知
type MessagePayload struct {
	Message string `json:"message"`
}

// GameOverPayload 遊戲結束
type GameOverPayload struct {
	GameOver bool   `json:"gameOver"`
	Message  string `json:"message"`
}

// GameResultPayload 最終結算
type GameResultPayload struct {
	IsCleared     bool           `json:"isCleared"`
	PlayerResults []PlayerResult `json:"playerResults"`
}

// RoomInfoPayload 建立/加入房間的回應
type RoomInfoPayload struct {
	RoomID         string `json:"roomId"`
	InviteCode     string `json:"inviteCode,omitempty"`
	CurrentPlayers int    `json:"currentPlayers"`
	MaxPlayers     int    `json:"maxPlayers"`
}

// FanoutGateway 將事件同時送往多個閘道（WebSocket + NATS）
type FanoutGateway []Gateway

// BroadcastToRoom 廣播到所有閘道
func (f FanoutGateway) BroadcastToRoom(roomID, event string, payload any) {
	for _, g := range f {
		g.BroadcastToRoom(roomID, event, payload)
	}
}

// SendToConnection 單播到所有閘道
func (f FanoutGateway) SendToConnection(connID, event string, payload any) {
	for _, g := range f {
		g.SendToConnection(connID, event, payload)
	}
}

// Envelope 對外送出的事件格式（WebSocket 與 NATS 共用）
type Envelope struct {
	Event     string `json:"event"`
	RoomID    string `json:"roomId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"` // Unix 毫秒
}
