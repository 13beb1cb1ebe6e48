package internal

import (
	"log/slog"
	"slices"
	"sync"
)

// Registry 房間註冊表
//
// 系統設計考量：
//
//  1. 兩層鎖：
//     - mu（全域讀寫鎖）只保護 map 本身：rooms、playerRoom、summaries
//     - roomEntry.mu（房間鎖）序列化同一房間的所有讀改寫
//     - 鎖順序固定為「房間鎖 → 全域鎖」，不同房間完全並行
//
//  2. 反向索引（playerID → roomID）：
//     每次 Update 結束時比對前後名單，在全域鎖內同步更新，
//     房間變空時連同索引、邀請碼一起原子移除。
//
//  3. 配對摘要（summaries）：
//     FindMatchable 只讀摘要、不碰房間鎖，避免反向取鎖；
//     摘要可能稍舊，加入時仍會在房間鎖內重新驗證。
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]*roomEntry  // roomID -> entry
	summaries  map[string]roomSummary // roomID -> 配對用摘要
	playerRoom map[string]string      // playerID -> roomID
	pending    map[string]bool        // 加入中的玩家 -> 是否已取消
	seq        uint64

	codes    *InviteCodes
	onRemove []func(roomID string)
	logger   *slog.Logger
}

type roomEntry struct {
	mu      sync.Mutex
	room    *Room
	removed bool
}

type roomSummary struct {
	isPublic   bool
	status     RoomStatus
	bossLevel  int
	maxPlayers int
	players    int
	seq        uint64 // 建立順序，越小越早
}

// NewRegistry 創建房間註冊表
func NewRegistry(codes *InviteCodes, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:      make(map[string]*roomEntry),
		summaries:  make(map[string]roomSummary),
		playerRoom: make(map[string]string),
		pending:    make(map[string]bool),
		codes:      codes,
		logger:     logger,
	}
}

// OnRemove 註冊房間移除後的回呼（計時器、廣播範圍清理）
//
// 回呼在房間鎖內執行，不可再呼叫同一房間的 Update。
func (g *Registry) OnRemove(fn func(roomID string)) {
	g.mu.Lock()
	g.onRemove = append(g.onRemove, fn)
	g.mu.Unlock()
}

// Add 加入新房間；ID 重複回傳 ErrDuplicateRoom
func (g *Registry) Add(room *Room) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.rooms[room.ID]; exists {
		return ErrDuplicateRoom
	}
	for _, p := range room.Players {
		if other, ok := g.playerRoom[p.ID]; ok && other != room.ID {
			return ErrPlayerAlreadyInRoom
		}
	}

	g.seq++
	g.rooms[room.ID] = &roomEntry{room: room}
	g.summaries[room.ID] = summarize(room, g.seq)
	for _, p := range room.Players {
		g.playerRoom[p.ID] = room.ID
	}

	g.logger.Info("房間已創建",
		"room_id", room.ID,
		"boss_level", room.BossLevel,
		"max_players", room.MaxPlayers,
		"public", room.IsPublic,
		"invite_code", room.InviteCode)

	return nil
}

// Get 取得房間快照
func (g *Registry) Get(roomID string) (RoomSnapshot, error) {
	var snap RoomSnapshot
	err := g.View(roomID, func(r *Room) {
		snap = r.Snapshot()
	})
	return snap, err
}

// View 在房間鎖內唯讀存取
func (g *Registry) View(roomID string, fn func(r *Room)) error {
	e := g.entry(roomID)
	if e == nil {
		return ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return ErrRoomNotFound
	}
	fn(e.room)
	return nil
}

// Update 在房間鎖內執行讀改寫
//
// fn 回傳錯誤時也會同步索引（fn 應先驗證再修改，此時名單不變）。
// 房間在 fn 之後變空，會立即連同索引與邀請碼一起移除。
func (g *Registry) Update(roomID string, fn func(r *Room) error) error {
	e := g.entry(roomID)
	if e == nil {
		return ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return ErrRoomNotFound
	}

	before := e.room.PlayerIDs()
	err := fn(e.room)
	g.reconcile(e, before)

	return err
}

// Remove 移除房間及其索引；房間不存在時為 no-op
func (g *Registry) Remove(roomID string) {
	e := g.entry(roomID)
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return
	}

	g.mu.Lock()
	for _, p := range e.room.Players {
		if g.playerRoom[p.ID] == roomID {
			delete(g.playerRoom, p.ID)
		}
	}
	hooks := g.drop(e)
	g.mu.Unlock()

	g.afterRemove(roomID, hooks)
}

// RoomOf 玩家目前所在的房間 ID
func (g *Registry) RoomOf(playerID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	roomID, ok := g.playerRoom[playerID]
	return roomID, ok
}

// FindByPlayer 玩家目前所在房間的快照
func (g *Registry) FindByPlayer(playerID string) (RoomSnapshot, bool) {
	roomID, ok := g.RoomOf(playerID)
	if !ok {
		return RoomSnapshot{}, false
	}
	snap, err := g.Get(roomID)
	if err != nil {
		return RoomSnapshot{}, false
	}
	return snap, true
}

// FindMatchable 找出最早建立、仍在等待且未滿的公開房間
func (g *Registry) FindMatchable(bossLevel, maxPlayers int) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var (
		best   string
		bestSq uint64
	)
	for roomID, s := range g.summaries {
		if !s.isPublic || s.status != StatusWaiting {
			continue
		}
		if s.bossLevel != bossLevel || s.maxPlayers != maxPlayers || s.players >= s.maxPlayers {
			continue
		}
		if best == "" || s.seq < bestSq {
			best, bestSq = roomID, s.seq
		}
	}
	return best, best != ""
}

// List 依建立順序列出房間（status 為空表示不過濾）
func (g *Registry) List(status RoomStatus) []RoomSnapshot {
	g.mu.RLock()
	type item struct {
		id  string
		seq uint64
	}
	items := make([]item, 0, len(g.summaries))
	for roomID, s := range g.summaries {
		if status != "" && s.status != status {
			continue
		}
		items = append(items, item{roomID, s.seq})
	}
	g.mu.RUnlock()

	slices.SortFunc(items, func(a, b item) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	// 釋放全域鎖後才取房間鎖
	out := make([]RoomSnapshot, 0, len(items))
	for _, it := range items {
		if snap, err := g.Get(it.id); err == nil {
			out = append(out, snap)
		}
	}
	return out
}

// Len 房間數量
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Stats 統計資訊
func (g *Registry) Stats() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	statusCount := make(map[RoomStatus]int)
	public := 0
	for _, s := range g.summaries {
		statusCount[s.status]++
		if s.isPublic {
			public++
		}
	}

	return map[string]any{
		"total_rooms":   len(g.rooms),
		"total_players": len(g.playerRoom),
		"public_rooms":  public,
		"private_rooms": len(g.rooms) - public,
		"by_status":     statusCount,
	}
}

// reserve 標記玩家正在加入，避免同一玩家同時進入兩個房間
func (g *Registry) reserve(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.playerRoom[playerID]; ok {
		return ErrPlayerAlreadyInRoom
	}
	if _, ok := g.pending[playerID]; ok {
		return ErrPlayerAlreadyInRoom
	}
	g.pending[playerID] = false
	return nil
}

// release 清除加入中標記，回傳加入期間是否被取消
func (g *Registry) release(playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	cancelled := g.pending[playerID]
	delete(g.pending, playerID)
	return cancelled
}

// cancelPending 玩家仍在加入中（尚未進入索引）時標記取消
func (g *Registry) cancelPending(playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pending[playerID]; !ok {
		return false
	}
	g.pending[playerID] = true
	return true
}

func (g *Registry) entry(roomID string) *roomEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rooms[roomID]
}

// reconcile 比對名單並同步索引（需持有房間鎖）
func (g *Registry) reconcile(e *roomEntry, before []string) {
	room := e.room
	after := room.PlayerIDs()

	g.mu.Lock()
	for _, id := range before {
		if !slices.Contains(after, id) && g.playerRoom[id] == room.ID {
			delete(g.playerRoom, id)
		}
	}
	for _, id := range after {
		g.playerRoom[id] = room.ID
	}

	var hooks []func(string)
	if room.IsEmpty() {
		hooks = g.drop(e)
	} else {
		s := g.summaries[room.ID]
		g.summaries[room.ID] = summarize(room, s.seq)
	}
	g.mu.Unlock()

	if e.removed {
		g.afterRemove(room.ID, hooks)
	}
}

// drop 從 map 中移除房間並釋放邀請碼（需持有房間鎖與全域鎖）
func (g *Registry) drop(e *roomEntry) []func(string) {
	e.removed = true
	delete(g.rooms, e.room.ID)
	delete(g.summaries, e.room.ID)
	if e.room.InviteCode != "" {
		g.codes.Release(e.room.InviteCode)
	}
	return slices.Clone(g.onRemove)
}

func (g *Registry) afterRemove(roomID string, hooks []func(string)) {
	for _, fn := range hooks {
		fn(roomID)
	}
	g.logger.Info("房間已移除", "room_id", roomID)
}

func summarize(r *Room, seq uint64) roomSummary {
	return roomSummary{
		isPublic:   r.IsPublic,
		status:     r.Status,
		bossLevel:  r.BossLevel,
		maxPlayers: r.MaxPlayers,
		players:    len(r.Players),
		seq:        seq,
	}
}
