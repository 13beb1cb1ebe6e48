package internal

import (
	"log/slog"
	"sync"
	"time"
)

// TimerKind 計時器種類
type TimerKind int

const (
	TimerGameOver TimerKind = iota // 遊戲時間到
	TimerFeverEnd                  // Fever 結束
)

func (k TimerKind) String() string {
	switch k {
	case TimerGameOver:
		return "game_over"
	case TimerFeverEnd:
		return "fever_end"
	default:
		return "unknown"
	}
}

// TimerEvent 計時器到期事件
type TimerEvent struct {
	Kind    TimerKind
	RoomID  string
	Episode int // 僅 Fever 使用
}

// TimerManager 房間計時器
//
// 系統設計考量：
//   - 每個房間只有一個遊戲時長計時器，進入 playing 時設定一次
//   - Fever 計時器不提供取消，到期時由處理端檢查世代編號
//   - 到期事件透過 channel 交給單一處理者（LifecycleController.Run），
//     計時器 goroutine 本身不碰房間狀態
type TimerManager struct {
	mu           sync.Mutex
	gameTimers   map[string]*time.Timer   // roomID -> 遊戲計時器
	feverTimers  map[string][]*time.Timer // roomID -> Fever 計時器
	gameDuration time.Duration
	events       chan TimerEvent
	stopCh       chan struct{}
	stopOnce     sync.Once
	logger       *slog.Logger
}

// NewTimerManager 創建計時器管理器
func NewTimerManager(gameDuration time.Duration, logger *slog.Logger) *TimerManager {
	return &TimerManager{
		gameTimers:   make(map[string]*time.Timer),
		feverTimers:  make(map[string][]*time.Timer),
		gameDuration: gameDuration,
		events:       make(chan TimerEvent, 64),
		stopCh:       make(chan struct{}),
		logger:       logger,
	}
}

// Events 到期事件
func (tm *TimerManager) Events() <-chan TimerEvent {
	return tm.events
}

// Done 停止訊號
func (tm *TimerManager) Done() <-chan struct{} {
	return tm.stopCh
}

// StartGameTimer 設定遊戲時長計時器；同一房間重複呼叫回傳 false
func (tm *TimerManager) StartGameTimer(roomID string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, armed := tm.gameTimers[roomID]; armed {
		return false
	}

	tm.gameTimers[roomID] = time.AfterFunc(tm.gameDuration, func() {
		tm.fire(TimerEvent{Kind: TimerGameOver, RoomID: roomID})
	})

	tm.logger.Debug("遊戲計時器已設定", "room_id", roomID, "duration", tm.gameDuration)
	return true
}

// ScheduleFeverEnd 設定一次性的 Fever 結束計時器
func (tm *TimerManager) ScheduleFeverEnd(roomID string, episode int, d time.Duration) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t := time.AfterFunc(d, func() {
		tm.fire(TimerEvent{Kind: TimerFeverEnd, RoomID: roomID, Episode: episode})
	})
	tm.feverTimers[roomID] = append(tm.feverTimers[roomID], t)
}

// Release 房間移除時停止其所有計時器
func (tm *TimerManager) Release(roomID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if t, ok := tm.gameTimers[roomID]; ok {
		t.Stop()
		delete(tm.gameTimers, roomID)
	}
	for _, t := range tm.feverTimers[roomID] {
		t.Stop()
	}
	delete(tm.feverTimers, roomID)
}

// Armed 房間是否已設定遊戲計時器
func (tm *TimerManager) Armed(roomID string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	_, ok := tm.gameTimers[roomID]
	return ok
}

// Stop 停止所有計時器
func (tm *TimerManager) Stop() {
	tm.stopOnce.Do(func() {
		close(tm.stopCh)

		tm.mu.Lock()
		for roomID, t := range tm.gameTimers {
			t.Stop()
			delete(tm.gameTimers, roomID)
		}
		for roomID, ts := range tm.feverTimers {
			for _, t := range ts {
				t.Stop()
			}
			delete(tm.feverTimers, roomID)
		}
		tm.mu.Unlock()

		tm.logger.Info("計時器管理器已停止")
	})
}

// fire 投遞到期事件；停止後丟棄
func (tm *TimerManager) fire(ev TimerEvent) {
	select {
	case tm.events <- ev:
	case <-tm.stopCh:
	}
}
