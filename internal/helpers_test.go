package internal_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-raid-room/internal"
	"github.com/stretchr/testify/require"
)

// testLogger 創建測試用的 logger
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // 測試時只顯示錯誤
	}))
}

// testGameConfig 小數值的遊戲參數：1 級 Boss 血量 10，道具傷害 6
func testGameConfig() internal.GameConfig {
	return internal.GameConfig{
		GameDuration:       time.Hour,
		FeverDuration:      time.Hour,
		ItemDamage:         6,
		BossHealthPerLevel: 10,
		MaxBossLevel:       5,
		FeverStepPercent:   30,
		MinPlayers:         2,
		MaxPlayers:         4,
	}
}

type recordedEvent struct {
	RoomID  string
	ConnID  string
	Event   string
	Payload any
}

// recordingGateway 記錄所有廣播，用來驗證事件順序與次數
type recordingGateway struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (g *recordingGateway) BroadcastToRoom(roomID, event string, payload any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, recordedEvent{RoomID: roomID, Event: event, Payload: payload})
}

func (g *recordingGateway) SendToConnection(connID, event string, payload any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, recordedEvent{ConnID: connID, Event: event, Payload: payload})
}

// Count 某個房間某種事件的次數
func (g *recordingGateway) Count(roomID, event string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, e := range g.events {
		if e.RoomID == roomID && e.Event == event {
			n++
		}
	}
	return n
}

// Names 某個房間依序收到的事件名稱
func (g *recordingGateway) Names(roomID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var names []string
	for _, e := range g.events {
		if e.RoomID == roomID {
			names = append(names, e.Event)
		}
	}
	return names
}

// Last 某個房間最後一次的某種事件
func (g *recordingGateway) Last(roomID, event string) (recordedEvent, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.events) - 1; i >= 0; i-- {
		if e := g.events[i]; e.RoomID == roomID && e.Event == event {
			return e, true
		}
	}
	return recordedEvent{}, false
}

// engine 組裝好的核心元件
type engine struct {
	cfg        internal.GameConfig
	codes      *internal.InviteCodes
	registry   *internal.Registry
	timers     *internal.TimerManager
	gateway    *recordingGateway
	matchmaker *internal.Matchmaker
	lifecycle  *internal.LifecycleController
}

func newEngine(t testing.TB, cfg internal.GameConfig) *engine {
	t.Helper()

	logger := testLogger()
	e := &engine{
		cfg:     cfg,
		codes:   internal.NewInviteCodes(),
		gateway: &recordingGateway{},
	}
	e.registry = internal.NewRegistry(e.codes, logger)
	e.timers = internal.NewTimerManager(cfg.GameDuration, logger)
	e.matchmaker = internal.NewMatchmaker(e.registry, e.codes, e.gateway, cfg, logger)
	e.lifecycle = internal.NewLifecycleController(e.registry, e.timers, e.gateway, cfg, logger)
	e.lifecycle.Attach(e.matchmaker)

	ctx, cancel := context.WithCancel(context.Background())
	go e.lifecycle.Run(ctx)

	t.Cleanup(func() {
		cancel()
		e.timers.Stop()
	})
	return e
}

// startGame 讓玩家依序隨機配對到同一房間並開始遊戲
func (e *engine) startGame(t testing.TB, bossLevel int, players ...string) string {
	t.Helper()

	var roomID string
	for _, p := range players {
		snap, err := e.matchmaker.FindOrCreateRandomMatch(p, bossLevel, len(players))
		require.NoError(t, err)
		if roomID == "" {
			roomID = snap.ID
		}
		require.Equal(t, roomID, snap.ID)
		require.NoError(t, e.lifecycle.PlayerJoined(snap.ID, p))
	}

	snap, err := e.registry.Get(roomID)
	require.NoError(t, err)
	require.Equal(t, internal.StatusPlaying, snap.Status)
	return roomID
}
