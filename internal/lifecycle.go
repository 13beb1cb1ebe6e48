package internal

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// LifecycleController 房間生命週期
//
// 所有狀態轉換都在 Registry.Update 的房間鎖內完成，廣播也在鎖內送出，
// 因此同一房間對外觀察到的事件順序與狀態轉換順序一致：
//
//	waiting → ready → playing → {fever}* → finished → 拆除
//
// 計時器到期事件由 Run 單一消費，與玩家動作走同一條加鎖路徑。
type LifecycleController struct {
	registry *Registry
	timers   *TimerManager
	gateway  Gateway
	cfg      GameConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewLifecycleController 創建生命週期控制器
//
// 會向註冊表登記房間移除時釋放計時器。
func NewLifecycleController(registry *Registry, timers *TimerManager, gateway Gateway, cfg GameConfig, logger *slog.Logger) *LifecycleController {
	lc := &LifecycleController{
		registry: registry,
		timers:   timers,
		gateway:  gateway,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	registry.OnRemove(timers.Release)
	return lc
}

// Attach 讓配對引擎在結束後有人離開時重新檢查結果屏障
func (lc *LifecycleController) Attach(m *Matchmaker) {
	m.onFinishedLeave = func(r *Room) {
		lc.releaseResults(r)
	}
}

// PlayerJoined 廣播玩家加入，人數到齊則開始遊戲
//
// 呼叫端應在連線訂閱房間之後呼叫，新加入的玩家也會收到通知。
func (lc *LifecycleController) PlayerJoined(roomID, playerID string) error {
	return lc.registry.Update(roomID, func(r *Room) error {
		if r.Player(playerID) == nil {
			return nil
		}
		lc.gateway.BroadcastToRoom(r.ID, EventPlayerJoined, OccupancyPayload{
			UserID:         playerID,
			CurrentPlayers: len(r.Players),
			MaxPlayers:     r.MaxPlayers,
		})
		lc.checkAndStart(r)
		return nil
	})
}

// CheckAndStartGame 人數到齊時開始遊戲
func (lc *LifecycleController) CheckAndStartGame(roomID string) error {
	return lc.registry.Update(roomID, func(r *Room) error {
		lc.checkAndStart(r)
		return nil
	})
}

// checkAndStart ready 與 playing 在同一次持鎖內完成，其他動作無法插入其間
func (lc *LifecycleController) checkAndStart(r *Room) bool {
	if !r.IsFull() || !r.MarkReady() {
		return false
	}

	lc.gateway.BroadcastToRoom(r.ID, EventGameReady, GameReadyPayload{
		Message: "所有玩家已就緒",
		Players: r.Snapshot().Players,
	})

	if !r.Start(lc.now()) {
		return false
	}
	lc.timers.StartGameTimer(r.ID)

	lc.gateway.BroadcastToRoom(r.ID, EventGameStart, GameStartPayload{
		RoomID:     r.ID,
		Message:    "遊戲開始！",
		BossHealth: r.BossHealth,
		Players:    r.Snapshot().Players,
	})

	lc.logger.Info("遊戲開始",
		"room_id", r.ID,
		"players", len(r.Players),
		"boss_health", r.BossHealth,
		"duration", lc.cfg.GameDuration)
	return true
}

// UpdateRunningData 更新玩家即時跑步數據（僅 playing 狀態）
func (lc *LifecycleController) UpdateRunningData(playerID string, data RunningData) error {
	roomID, ok := lc.registry.RoomOf(playerID)
	if !ok {
		return ErrRoomNotFound
	}

	return lc.registry.Update(roomID, func(r *Room) error {
		if r.Status != StatusPlaying {
			return nil
		}
		p, ok := r.UpdateRunningData(playerID, data)
		if !ok {
			return ErrRoomNotFound
		}

		lc.gateway.BroadcastToRoom(r.ID, EventPlayerDataUpdated, RunningDataPayload{
			UserID:       p.ID,
			Distance:     p.RunningData.Distance,
			ItemUseCount: p.UsedItemCount,
		})
		return nil
	})
}

// UseItem 玩家使用道具
//
// 非 playing 狀態為 no-op。順序固定：扣血 → Fever 判定 → 結束判定 → 廣播狀態 → gameOver。
func (lc *LifecycleController) UseItem(playerID string) error {
	roomID, ok := lc.registry.RoomOf(playerID)
	if !ok {
		return ErrRoomNotFound
	}

	return lc.registry.Update(roomID, func(r *Room) error {
		if r.Status != StatusPlaying {
			return nil
		}
		p, ok := r.UseItem(playerID, lc.cfg.ItemDamage)
		if !ok {
			return ErrRoomNotFound
		}

		if r.CheckFeverCondition() {
			lc.startFever(r)
		}
		finished := r.IsGameFinished() && r.Finish(lc.now())

		// 狀態廣播反映判定後的結果（擊倒時 Fever 已關閉）
		lc.gateway.BroadcastToRoom(r.ID, EventGameStatusUpdated, GameStatusPayload{
			BossHealth:      r.BossHealth,
			FeverTimeActive: r.FeverActive,
			UserID:          p.ID,
			ItemUseCount:    p.UsedItemCount,
		})

		if finished {
			lc.announceFinish(r)
		}
		return nil
	})
}

// FinishGame 結束遊戲（Boss 被擊倒或時間到）
//
// 房間已不在 playing 時為 no-op。
func (lc *LifecycleController) FinishGame(roomID string) error {
	return lc.registry.Update(roomID, func(r *Room) error {
		lc.finish(r)
		return nil
	})
}

func (lc *LifecycleController) finish(r *Room) bool {
	if !r.Finish(lc.now()) {
		lc.logger.Debug("遊戲已結束，略過", "room_id", r.ID, "status", r.Status)
		return false
	}
	lc.announceFinish(r)
	return true
}

// announceFinish 廣播 gameOver（房間已轉為 finished）
func (lc *LifecycleController) announceFinish(r *Room) {
	lc.gateway.BroadcastToRoom(r.ID, EventGameOver, GameOverPayload{
		GameOver: true,
		Message:  "遊戲結束",
	})

	lc.logger.Info("遊戲結束",
		"room_id", r.ID,
		"victory", r.Victory,
		"boss_health", r.BossHealth,
		"elapsed", r.FinishedAt.Sub(r.StartedAt))
}

// SubmitResult 提交結算數據
//
// 房間未結束回傳 ErrGameNotFinished。最後一位在場玩家提交時
// 廣播排名結果並拆除房間（結果屏障）。
func (lc *LifecycleController) SubmitResult(playerID string, result RunningResult) error {
	roomID, ok := lc.registry.RoomOf(playerID)
	if !ok {
		return ErrRoomNotFound
	}

	return lc.registry.Update(roomID, func(r *Room) error {
		collected, err := r.RecordResult(playerID, result)
		if err != nil {
			return err
		}

		lc.logger.Info("收到結算數據",
			"room_id", r.ID,
			"player_id", playerID,
			"collected", collected,
			"players", len(r.Players))

		lc.releaseResults(r)
		return nil
	})
}

// releaseResults 結果屏障：全員提交後廣播結果並清空房間
//
// 清空名單後註冊表會自動移除房間、釋放邀請碼與計時器。
func (lc *LifecycleController) releaseResults(r *Room) bool {
	if !r.ResultsComplete() {
		return false
	}

	ranked := r.RankedResults()
	lc.gateway.BroadcastToRoom(r.ID, EventGameResult, GameResultPayload{
		IsCleared:     r.Victory,
		PlayerResults: ranked,
	})

	r.DiscardResults()
	r.Players = r.Players[:0]

	lc.logger.Info("結算完成，房間拆除",
		"room_id", r.ID,
		"victory", r.Victory,
		"results", len(ranked))
	return true
}

// startFever 開啟 Fever 並設定結束計時器
func (lc *LifecycleController) startFever(r *Room) {
	episode := r.StartFever(lc.now(), lc.cfg.FeverDuration)
	lc.timers.ScheduleFeverEnd(r.ID, episode, lc.cfg.FeverDuration)

	lc.gateway.BroadcastToRoom(r.ID, EventFeverStarted, FeverStartedPayload{
		FeverTimeActive: true,
		Duration:        int(lc.cfg.FeverDuration / time.Second),
	})

	lc.logger.Info("Fever 開始",
		"room_id", r.ID,
		"episode", episode,
		"boss_health", r.BossHealth)
}

// endFever Fever 計時器到期；世代不符或已非 playing 則略過
func (lc *LifecycleController) endFever(roomID string, episode int) error {
	return lc.registry.Update(roomID, func(r *Room) error {
		if !r.EndFever(episode) {
			lc.logger.Debug("過期的 Fever 計時器", "room_id", roomID, "episode", episode)
			return nil
		}

		lc.gateway.BroadcastToRoom(r.ID, EventFeverEnded, MessagePayload{
			Message: "Fever 時間結束",
		})
		lc.logger.Info("Fever 結束", "room_id", r.ID, "episode", episode)
		return nil
	})
}

// Run 消費計時器到期事件，直到 ctx 取消或計時器管理器停止
func (lc *LifecycleController) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-lc.timers.Done():
			return
		case ev := <-lc.timers.Events():
			lc.handleTimer(ev)
		}
	}
}

// handleTimer 計時器處理不回傳錯誤；房間已不存在屬於正常競爭
func (lc *LifecycleController) handleTimer(ev TimerEvent) {
	var err error
	switch ev.Kind {
	case TimerGameOver:
		err = lc.FinishGame(ev.RoomID)
	case TimerFeverEnd:
		err = lc.endFever(ev.RoomID, ev.Episode)
	}

	if errors.Is(err, ErrRoomNotFound) {
		lc.logger.Debug("計時器到期時房間已移除", "room_id", ev.RoomID, "kind", ev.Kind)
		return
	}
	if err != nil {
		lc.logger.Warn("計時器處理失敗", "room_id", ev.RoomID, "kind", ev.Kind, "error", err)
	}
}
