package internal

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// maxMatchAttempts 摘要過期時重新配對的次數上限
const maxMatchAttempts = 8

// Matchmaker 配對引擎
//
// 三種入口共用同一個 join：
//   - FindOrCreateRandomMatch：公開房間，唯一可以建立公開房間的入口
//   - CreatePrivateRoom：私人房間 + 邀請碼
//   - JoinByInviteCode：以邀請碼加入
//
// 加入成功後，呼叫端負責把連線訂閱到房間廣播範圍。
type Matchmaker struct {
	registry *Registry
	codes    *InviteCodes
	gateway  Gateway
	cfg      GameConfig
	logger   *slog.Logger
	scopes   RoomScopes

	// onFinishedLeave 結束後有人離開時重新檢查結果屏障（由 LifecycleController 設定）
	onFinishedLeave func(r *Room)
}

// NewMatchmaker 創建配對引擎
func NewMatchmaker(registry *Registry, codes *InviteCodes, gateway Gateway, cfg GameConfig, logger *slog.Logger) *Matchmaker {
	return &Matchmaker{
		registry: registry,
		codes:    codes,
		gateway:  gateway,
		cfg:      cfg,
		logger:   logger,
	}
}

// FindOrCreateRandomMatch 隨機配對：有合適的公開房間就加入，否則建立新房間
func (m *Matchmaker) FindOrCreateRandomMatch(playerID string, bossLevel, maxPlayers int) (RoomSnapshot, error) {
	if err := m.validate(bossLevel, maxPlayers); err != nil {
		return RoomSnapshot{}, err
	}
	return m.reserved(playerID, func() (RoomSnapshot, error) {
		return m.randomMatch(playerID, bossLevel, maxPlayers)
	})
}

func (m *Matchmaker) randomMatch(playerID string, bossLevel, maxPlayers int) (RoomSnapshot, error) {
	for range maxMatchAttempts {
		roomID, ok := m.registry.FindMatchable(bossLevel, maxPlayers)
		if !ok {
			break
		}

		snap, err := m.join(roomID, playerID)
		switch {
		case err == nil:
			m.logger.Info("隨機配對成功",
				"room_id", snap.ID,
				"player_id", playerID,
				"players", snap.PlayerCount(),
				"max_players", snap.MaxPlayers)
			return snap, nil
		case errors.Is(err, ErrRoomFull),
			errors.Is(err, ErrGameAlreadyInProgress),
			errors.Is(err, ErrRoomNotFound):
			// 摘要已過期（剛好被別人填滿或移除），換下一間
			m.logger.Debug("配對候選房間已失效", "room_id", roomID, "error", err)
			continue
		default:
			return RoomSnapshot{}, err
		}
	}

	return m.create(playerID, bossLevel, maxPlayers, true)
}

// CreatePrivateRoom 建立私人房間並分配邀請碼
func (m *Matchmaker) CreatePrivateRoom(playerID string, bossLevel, maxPlayers int) (RoomSnapshot, error) {
	if err := m.validate(bossLevel, maxPlayers); err != nil {
		return RoomSnapshot{}, err
	}
	return m.reserved(playerID, func() (RoomSnapshot, error) {
		return m.create(playerID, bossLevel, maxPlayers, false)
	})
}

// JoinByInviteCode 以邀請碼加入私人房間
func (m *Matchmaker) JoinByInviteCode(playerID, code string) (RoomSnapshot, error) {
	roomID, ok := m.codes.Resolve(code)
	if !ok {
		return RoomSnapshot{}, ErrInvalidInviteCode
	}

	snap, err := m.Join(roomID, playerID)
	if err != nil {
		return RoomSnapshot{}, err
	}

	m.logger.Info("邀請碼加入成功",
		"room_id", snap.ID,
		"player_id", playerID,
		"invite_code", code)
	return snap, nil
}

// Join 加入指定房間
//
// 非 waiting 回傳 ErrGameAlreadyInProgress；人滿回傳 ErrRoomFull。
func (m *Matchmaker) Join(roomID, playerID string) (RoomSnapshot, error) {
	return m.reserved(playerID, func() (RoomSnapshot, error) {
		return m.join(roomID, playerID)
	})
}

// reserved 在加入中標記的保護下執行加入；期間收到 Leave 則撤銷這次加入
func (m *Matchmaker) reserved(playerID string, fn func() (RoomSnapshot, error)) (RoomSnapshot, error) {
	if err := m.registry.reserve(playerID); err != nil {
		return RoomSnapshot{}, err
	}

	snap, err := fn()
	if cancelled := m.registry.release(playerID); cancelled && err == nil {
		if _, leaveErr := m.Leave(playerID); leaveErr != nil {
			return RoomSnapshot{}, leaveErr
		}
		m.logger.Info("加入途中已取消配對", "room_id", snap.ID, "player_id", playerID)
		return RoomSnapshot{}, ErrMatchCancelled
	}
	return snap, err
}

// Leave 離開目前房間，回傳離開的房間 ID
//
// 不在任何房間時為 no-op（重複離開、斷線競爭）；
// 若同一玩家的加入還在進行中，該次加入完成後會被撤銷並回傳 ErrMatchCancelled。
// 房間變空會被註冊表移除；否則廣播 playerLeft。
func (m *Matchmaker) Leave(playerID string) (string, error) {
	roomID, ok := m.registry.RoomOf(playerID)
	if !ok {
		if m.registry.cancelPending(playerID) {
			m.logger.Debug("玩家加入中，標記取消", "player_id", playerID)
		}
		return "", nil
	}

	left := false
	err := m.registry.Update(roomID, func(r *Room) error {
		if !r.RemovePlayer(playerID) {
			return nil
		}
		left = true

		if r.IsEmpty() {
			m.leaveScope(r.ID, playerID)
			return nil
		}

		m.gateway.BroadcastToRoom(r.ID, EventPlayerLeft, OccupancyPayload{
			UserID:         playerID,
			CurrentPlayers: len(r.Players),
			MaxPlayers:     r.MaxPlayers,
		})
		m.leaveScope(r.ID, playerID)

		if r.Status == StatusFinished && m.onFinishedLeave != nil {
			m.onFinishedLeave(r)
		}
		return nil
	})
	if errors.Is(err, ErrRoomNotFound) {
		m.logger.Debug("離開時房間已移除", "room_id", roomID, "player_id", playerID)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !left {
		return "", nil
	}

	m.logger.Info("玩家離開房間", "room_id", roomID, "player_id", playerID)
	return roomID, nil
}

// join 共用的加入流程（呼叫端需已 reserve）
func (m *Matchmaker) join(roomID, playerID string) (RoomSnapshot, error) {
	var snap RoomSnapshot
	err := m.registry.Update(roomID, func(r *Room) error {
		if err := r.AddPlayer(playerID); err != nil {
			return err
		}
		m.joinScope(r.ID, playerID)
		snap = r.Snapshot()
		return nil
	})
	if err != nil {
		return RoomSnapshot{}, fmt.Errorf("join room %s: %w", roomID, err)
	}
	return snap, nil
}

// create 建立房間，建立者直接成為第一位玩家
func (m *Matchmaker) create(playerID string, bossLevel, maxPlayers int, public bool) (RoomSnapshot, error) {
	room := NewRoom(uuid.NewString(), bossLevel, maxPlayers, public, m.cfg)
	if !public {
		room.InviteCode = m.codes.Allocate(room.ID)
	}

	if err := room.AddPlayer(playerID); err != nil {
		m.codes.Release(room.InviteCode)
		return RoomSnapshot{}, err
	}

	// 加入註冊表之後其他人就能修改，先取快照
	snap := room.Snapshot()
	m.joinScope(room.ID, playerID)

	if err := m.registry.Add(room); err != nil {
		m.leaveScope(room.ID, playerID)
		m.codes.Release(room.InviteCode)
		return RoomSnapshot{}, fmt.Errorf("add room %s: %w", room.ID, err)
	}

	return snap, nil
}

// UseScopes 設定房間廣播範圍（WebSocketHub）
func (m *Matchmaker) UseScopes(s RoomScopes) {
	m.scopes = s
}

func (m *Matchmaker) joinScope(roomID, playerID string) {
	if m.scopes != nil {
		m.scopes.JoinScope(roomID, playerID)
	}
}

func (m *Matchmaker) leaveScope(roomID, playerID string) {
	if m.scopes != nil {
		m.scopes.LeaveScope(roomID, playerID)
	}
}

// validate 檢查 Boss 等級與人數上限
func (m *Matchmaker) validate(bossLevel, maxPlayers int) error {
	if bossLevel < 1 || bossLevel > m.cfg.MaxBossLevel {
		return fmt.Errorf("%w: Boss 等級必須在 1-%d 之間", ErrInvalidRoomConfig, m.cfg.MaxBossLevel)
	}
	if maxPlayers < m.cfg.MinPlayers || maxPlayers > m.cfg.MaxPlayers {
		return fmt.Errorf("%w: 玩家數量必須在 %d-%d 之間", ErrInvalidRoomConfig, m.cfg.MinPlayers, m.cfg.MaxPlayers)
	}
	return nil
}
