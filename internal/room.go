package internal

import (
	"time"
)

// 系統設計問題：
//   多名玩家同時對同一隻 Boss 造成傷害，房間狀態如何保持一致？
//
// 核心挑戰：
//   1. 狀態機：waiting → ready → playing → finished，只能單向前進
//   2. 並發：加入、離開、使用道具、計時器到期可能同時發生
//   3. 冪等：Boss 被擊倒與時間到可能同時觸發結束
//
// 設計方案：
//   Room 本身不加鎖，所有修改都經由 Registry.Update 在單一房間鎖內進行，
//   因此「檢查容量 → 加入」「扣血 → 檢查結束」都是原子的。

// RoomStatus 房間狀態
//
//	waiting → ready → playing → finished
//
// ready 只以通知的形式出現，不會停留。
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusReady    RoomStatus = "ready"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// next 狀態機的唯一合法後繼
var next = map[RoomStatus]RoomStatus{
	StatusWaiting: StatusReady,
	StatusReady:   StatusPlaying,
	StatusPlaying: StatusFinished,
}

// RunningData 玩家即時跑步數據（最後寫入為準）
type RunningData struct {
	RunningTime int64   `json:"runningTime"` // 秒
	Distance    float64 `json:"distance"`    // 公里
	Pace        float64 `json:"pace"`
	Calories    float64 `json:"calories"`
	HeartRate   float64 `json:"heartRate"`
	Cadence     float64 `json:"cadence"`
}

// Player 房間內的玩家
type Player struct {
	ID            string      `json:"userId"`
	RunningData   RunningData `json:"runningData"`
	UsedItemCount int         `json:"itemUseCount"`
	JoinedAt      time.Time   `json:"joinedAt"`
}

// Room 突襲房間
type Room struct {
	ID                string
	BossLevel         int
	MaxPlayers        int
	IsPublic          bool
	InviteCode        string
	Status            RoomStatus
	Players           []*Player // 依加入順序
	BossHealth        int
	InitialBossHealth int
	FeverActive       bool
	FeverEndsAt       time.Time
	FeverEpisode      int // 已觸發的 Fever 次數，同時作為計時器的世代編號
	Victory           bool
	CreatedAt         time.Time
	StartedAt         time.Time
	FinishedAt        time.Time

	feverStep int
	results   *ResultSet
}

// NewRoom 創建新房間
//
// Boss 初始血量 = bossLevel × BossHealthPerLevel；
// Fever 門檻 = 初始血量 × FeverStepPercent%（無條件進位，至少 1）。
func NewRoom(id string, bossLevel, maxPlayers int, isPublic bool, cfg GameConfig) *Room {
	health := bossLevel * cfg.BossHealthPerLevel

	step := (health*cfg.FeverStepPercent + 99) / 100
	if step < 1 {
		step = 1
	}

	return &Room{
		ID:                id,
		BossLevel:         bossLevel,
		MaxPlayers:        maxPlayers,
		IsPublic:          isPublic,
		Status:            StatusWaiting,
		Players:           make([]*Player, 0, maxPlayers),
		BossHealth:        health,
		InitialBossHealth: health,
		CreatedAt:         time.Now(),
		feverStep:         step,
	}
}

// AddPlayer 加入玩家（先驗證、後修改）
func (r *Room) AddPlayer(playerID string) error {
	if r.Status != StatusWaiting {
		return ErrGameAlreadyInProgress
	}
	if len(r.Players) >= r.MaxPlayers {
		return ErrRoomFull
	}
	if r.Player(playerID) != nil {
		return ErrPlayerAlreadyInRoom
	}

	r.Players = append(r.Players, &Player{
		ID:       playerID,
		JoinedAt: time.Now(),
	})
	return nil
}

// RemovePlayer 移除玩家，回傳是否真的移除
func (r *Room) RemovePlayer(playerID string) bool {
	for i, p := range r.Players {
		if p.ID == playerID {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

// Player 依 ID 查找玩家
func (r *Room) Player(playerID string) *Player {
	for _, p := range r.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// PlayerIDs 依加入順序回傳玩家 ID
func (r *Room) PlayerIDs() []string {
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ID
	}
	return ids
}

// IsFull 人數是否已達上限
func (r *Room) IsFull() bool {
	return len(r.Players) >= r.MaxPlayers
}

// IsEmpty 是否已無玩家
func (r *Room) IsEmpty() bool {
	return len(r.Players) == 0
}

// transition 狀態只能前進到唯一的後繼，回傳是否成功
func (r *Room) transition(to RoomStatus) bool {
	if next[r.Status] != to {
		return false
	}
	r.Status = to
	return true
}

// MarkReady waiting → ready
func (r *Room) MarkReady() bool {
	return r.transition(StatusReady)
}

// Start ready → playing，記錄開始時間
func (r *Room) Start(now time.Time) bool {
	if !r.transition(StatusPlaying) {
		return false
	}
	r.StartedAt = now
	return true
}

// Finish playing → finished，並開啟結果收集
//
// 非 playing 狀態呼叫為 no-op（回傳 false），
// 讓「Boss 被擊倒」與「時間到」兩條路徑只有一條生效。
func (r *Room) Finish(now time.Time) bool {
	if !r.transition(StatusFinished) {
		return false
	}
	r.FinishedAt = now
	r.Victory = r.BossHealth <= 0
	r.FeverActive = false
	r.results = NewResultSet()
	return true
}

// UpdateRunningData 更新玩家跑步數據
func (r *Room) UpdateRunningData(playerID string, data RunningData) (*Player, bool) {
	p := r.Player(playerID)
	if p == nil {
		return nil, false
	}
	p.RunningData = data
	return p, true
}

// UseItem 玩家使用道具：道具計數 +1，Boss 扣血（最低 0）
func (r *Room) UseItem(playerID string, damage int) (*Player, bool) {
	p := r.Player(playerID)
	if p == nil {
		return nil, false
	}
	p.UsedItemCount++
	r.ApplyDamage(damage)
	return p, true
}

// ApplyDamage Boss 扣血，血量不會小於 0
func (r *Room) ApplyDamage(damage int) {
	r.BossHealth -= damage
	if r.BossHealth < 0 {
		r.BossHealth = 0
	}
}

// DamageDealt 目前累積傷害
func (r *Room) DamageDealt() int {
	return r.InitialBossHealth - r.BossHealth
}

// CheckFeverCondition 是否應該開啟下一次 Fever
//
// 純函數：只看房間狀態。第 k 次 Fever 在累積傷害達到 k × feverStep 時觸發。
func (r *Room) CheckFeverCondition() bool {
	if r.Status != StatusPlaying || r.FeverActive || r.BossHealth <= 0 {
		return false
	}
	return r.DamageDealt() >= (r.FeverEpisode+1)*r.feverStep
}

// StartFever 開啟 Fever，回傳本次的世代編號
func (r *Room) StartFever(now time.Time, d time.Duration) int {
	r.FeverEpisode++
	r.FeverActive = true
	r.FeverEndsAt = now.Add(d)
	return r.FeverEpisode
}

// EndFever 結束指定世代的 Fever
//
// 過期的計時器（遊戲已結束或已進入下一次 Fever）回傳 false。
func (r *Room) EndFever(episode int) bool {
	if r.Status != StatusPlaying || !r.FeverActive || r.FeverEpisode != episode {
		return false
	}
	r.FeverActive = false
	r.FeverEndsAt = time.Time{}
	return true
}

// IsGameFinished Boss 是否已被擊倒
func (r *Room) IsGameFinished() bool {
	return r.BossHealth <= 0
}

// RecordResult 記錄玩家結算數據，回傳目前已收集的在場玩家數
func (r *Room) RecordResult(playerID string, result RunningResult) (int, error) {
	if r.Status != StatusFinished || r.results == nil {
		return 0, ErrGameNotFinished
	}
	if r.Player(playerID) == nil {
		return 0, ErrRoomNotFound
	}
	r.results.Record(playerID, result)
	return r.CollectedResults(), nil
}

// CollectedResults 在場玩家中已提交結果的人數
func (r *Room) CollectedResults() int {
	if r.results == nil {
		return 0
	}
	n := 0
	for _, p := range r.Players {
		if r.results.Has(p.ID) {
			n++
		}
	}
	return n
}

// ResultsComplete 結果屏障：所有在場玩家都已提交
func (r *Room) ResultsComplete() bool {
	return r.Status == StatusFinished && r.results != nil &&
		len(r.Players) > 0 && r.CollectedResults() == len(r.Players)
}

// RankedResults 依總距離排序的結算結果
func (r *Room) RankedResults() []PlayerResult {
	if r.results == nil {
		return nil
	}
	return r.results.Ranked(r.Players)
}

// DiscardResults 丟棄結果集
func (r *Room) DiscardResults() {
	r.results = nil
}

// RoomSnapshot 房間的唯讀副本
type RoomSnapshot struct {
	ID          string     `json:"roomId"`
	BossLevel   int        `json:"bossLevel"`
	MaxPlayers  int        `json:"maxPlayers"`
	IsPublic    bool       `json:"isPublic"`
	InviteCode  string     `json:"inviteCode,omitempty"`
	Status      RoomStatus `json:"status"`
	Players     []Player   `json:"players"`
	BossHealth  int        `json:"bossHealth"`
	FeverActive bool       `json:"feverTimeActive"`
	FeverEndsAt time.Time  `json:"feverEndsAt,omitzero"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   time.Time  `json:"startedAt,omitzero"`
}

// Snapshot 複製目前狀態
func (r *Room) Snapshot() RoomSnapshot {
	players := make([]Player, len(r.Players))
	for i, p := range r.Players {
		players[i] = *p
	}

	return RoomSnapshot{
		ID:          r.ID,
		BossLevel:   r.BossLevel,
		MaxPlayers:  r.MaxPlayers,
		IsPublic:    r.IsPublic,
		InviteCode:  r.InviteCode,
		Status:      r.Status,
		Players:     players,
		BossHealth:  r.BossHealth,
		FeverActive: r.FeverActive,
		FeverEndsAt: r.FeverEndsAt,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
	}
}

// PlayerCount 人數
func (s RoomSnapshot) PlayerCount() int {
	return len(s.Players)
}

// PlayerIDs 依加入順序回傳玩家 ID
func (s RoomSnapshot) PlayerIDs() []string {
	ids := make([]string, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.ID
	}
	return ids
}
