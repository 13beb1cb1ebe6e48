package internal_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/koopa0/system-design/14-raid-room/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMatchmaker_RandomMatchScenario 兩人房：第二位加入第一位的房間，第三位建立新房間
func TestMatchmaker_RandomMatchScenario(t *testing.T) {
	e := newEngine(t, testGameConfig())

	first, err := e.matchmaker.FindOrCreateRandomMatch("p1", 1, 2)
	require.NoError(t, err)
	assert.True(t, first.IsPublic)
	assert.Empty(t, first.InviteCode)
	assert.Equal(t, 1, first.PlayerCount())

	second, err := e.matchmaker.FindOrCreateRandomMatch("p2", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "加入既有房間")
	assert.Equal(t, []string{"p1", "p2"}, second.PlayerIDs())
	assert.Equal(t, 1, e.registry.Len())

	third, err := e.matchmaker.FindOrCreateRandomMatch("p3", 1, 2)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID, "房間已滿，建立新房間")
	assert.Equal(t, 2, e.registry.Len())
}

// TestMatchmaker_RandomMatchFilters 測試不同參數不會配對到同一房間
func TestMatchmaker_RandomMatchFilters(t *testing.T) {
	e := newEngine(t, testGameConfig())

	a, err := e.matchmaker.FindOrCreateRandomMatch("p1", 1, 2)
	require.NoError(t, err)
	b, err := e.matchmaker.FindOrCreateRandomMatch("p2", 2, 2)
	require.NoError(t, err)
	c, err := e.matchmaker.FindOrCreateRandomMatch("p3", 1, 3)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Equal(t, 3, e.registry.Len())
}

// TestMatchmaker_RandomMatchSkipsPrivate 測試隨機配對不會進入私人房間
func TestMatchmaker_RandomMatchSkipsPrivate(t *testing.T) {
	e := newEngine(t, testGameConfig())

	private, err := e.matchmaker.CreatePrivateRoom("p1", 1, 2)
	require.NoError(t, err)

	public, err := e.matchmaker.FindOrCreateRandomMatch("p2", 1, 2)
	require.NoError(t, err)
	assert.NotEqual(t, private.ID, public.ID)
}

// TestMatchmaker_InvalidConfig 測試參數範圍
func TestMatchmaker_InvalidConfig(t *testing.T) {
	tests := []struct {
		name       string
		bossLevel  int
		maxPlayers int
	}{
		{name: "boss level zero", bossLevel: 0, maxPlayers: 2},
		{name: "boss level too high", bossLevel: 6, maxPlayers: 2},
		{name: "too few players", bossLevel: 1, maxPlayers: 1},
		{name: "too many players", bossLevel: 1, maxPlayers: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, testGameConfig())

			_, err := e.matchmaker.FindOrCreateRandomMatch("p1", tt.bossLevel, tt.maxPlayers)
			assert.ErrorIs(t, err, internal.ErrInvalidRoomConfig)

			_, err = e.matchmaker.CreatePrivateRoom("p1", tt.bossLevel, tt.maxPlayers)
			assert.ErrorIs(t, err, internal.ErrInvalidRoomConfig)

			assert.Equal(t, 0, e.registry.Len())
		})
	}
}

// TestMatchmaker_PrivateRoom 測試私人房間與邀請碼加入
func TestMatchmaker_PrivateRoom(t *testing.T) {
	e := newEngine(t, testGameConfig())

	created, err := e.matchmaker.CreatePrivateRoom("host", 2, 3)
	require.NoError(t, err)
	assert.False(t, created.IsPublic)
	assert.Len(t, created.InviteCode, 6)
	assert.Equal(t, 20, created.BossHealth)

	joined, err := e.matchmaker.JoinByInviteCode("guest", created.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, created.ID, joined.ID)
	assert.Equal(t, []string{"host", "guest"}, joined.PlayerIDs())

	_, err = e.matchmaker.JoinByInviteCode("other", "NOPE00")
	assert.ErrorIs(t, err, internal.ErrInvalidInviteCode)
}

// TestMatchmaker_JoinErrors 測試加入失敗的情況
func TestMatchmaker_JoinErrors(t *testing.T) {
	t.Run("room full", func(t *testing.T) {
		e := newEngine(t, testGameConfig())
		room, err := e.matchmaker.CreatePrivateRoom("p1", 1, 2)
		require.NoError(t, err)
		_, err = e.matchmaker.JoinByInviteCode("p2", room.InviteCode)
		require.NoError(t, err)

		_, err = e.matchmaker.JoinByInviteCode("p3", room.InviteCode)
		assert.ErrorIs(t, err, internal.ErrRoomFull)
	})

	t.Run("game already in progress", func(t *testing.T) {
		e := newEngine(t, testGameConfig())
		room, err := e.matchmaker.CreatePrivateRoom("p1", 1, 3)
		require.NoError(t, err)
		require.NoError(t, e.registry.Update(room.ID, func(r *internal.Room) error {
			r.MarkReady()
			return nil
		}))

		_, err = e.matchmaker.JoinByInviteCode("p2", room.InviteCode)
		assert.ErrorIs(t, err, internal.ErrGameAlreadyInProgress)
	})

	t.Run("player already in a room", func(t *testing.T) {
		e := newEngine(t, testGameConfig())
		room, err := e.matchmaker.CreatePrivateRoom("p1", 1, 3)
		require.NoError(t, err)

		_, err = e.matchmaker.JoinByInviteCode("p1", room.InviteCode)
		assert.ErrorIs(t, err, internal.ErrPlayerAlreadyInRoom)

		_, err = e.matchmaker.FindOrCreateRandomMatch("p1", 1, 2)
		assert.ErrorIs(t, err, internal.ErrPlayerAlreadyInRoom)
		assert.Equal(t, 1, e.registry.Len())
	})

	t.Run("room removed after code issued", func(t *testing.T) {
		codes := internal.NewInviteCodes()
		registry := internal.NewRegistry(codes, testLogger())
		m := internal.NewMatchmaker(registry, codes, &recordingGateway{}, testGameConfig(), testLogger())

		// 邀請碼仍指向已不存在的房間
		code := codes.Allocate("ghost")
		_, err := m.JoinByInviteCode("p1", code)
		assert.ErrorIs(t, err, internal.ErrRoomNotFound)
	})
}

// TestMatchmaker_Leave 測試離開房間
func TestMatchmaker_Leave(t *testing.T) {
	t.Run("last player leaves removes room", func(t *testing.T) {
		e := newEngine(t, testGameConfig())
		room, err := e.matchmaker.FindOrCreateRandomMatch("p1", 1, 2)
		require.NoError(t, err)

		roomID, err := e.matchmaker.Leave("p1")
		require.NoError(t, err)
		assert.Equal(t, room.ID, roomID)

		assert.Equal(t, 0, e.registry.Len())
		_, ok := e.registry.FindByPlayer("p1")
		assert.False(t, ok)
		assert.Equal(t, 0, e.gateway.Count(room.ID, internal.EventPlayerLeft))
	})

	t.Run("private room releases invite code", func(t *testing.T) {
		e := newEngine(t, testGameConfig())
		room, err := e.matchmaker.CreatePrivateRoom("p1", 1, 2)
		require.NoError(t, err)

		_, err = e.matchmaker.Leave("p1")
		require.NoError(t, err)

		assert.Equal(t, 0, e.codes.Len())
		_, err = e.matchmaker.JoinByInviteCode("p2", room.InviteCode)
		assert.ErrorIs(t, err, internal.ErrInvalidInviteCode)
	})

	t.Run("remaining players get notified", func(t *testing.T) {
		e := newEngine(t, testGameConfig())
		room, err := e.matchmaker.FindOrCreateRandomMatch("p1", 1, 3)
		require.NoError(t, err)
		_, err = e.matchmaker.FindOrCreateRandomMatch("p2", 1, 3)
		require.NoError(t, err)

		_, err = e.matchmaker.Leave("p2")
		require.NoError(t, err)

		ev, ok := e.gateway.Last(room.ID, internal.EventPlayerLeft)
		require.True(t, ok)
		assert.Equal(t, internal.OccupancyPayload{UserID: "p2", CurrentPlayers: 1, MaxPlayers: 3}, ev.Payload)

		snap, err := e.registry.Get(room.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, snap.PlayerIDs())

		// 空出的位置可以再被配對
		again, err := e.matchmaker.FindOrCreateRandomMatch("p3", 1, 3)
		require.NoError(t, err)
		assert.Equal(t, room.ID, again.ID)
	})

	t.Run("leave without room is a no-op", func(t *testing.T) {
		e := newEngine(t, testGameConfig())

		roomID, err := e.matchmaker.Leave("nobody")
		assert.NoError(t, err)
		assert.Empty(t, roomID)

		_, err = e.matchmaker.FindOrCreateRandomMatch("p1", 1, 2)
		require.NoError(t, err)
		_, err = e.matchmaker.Leave("p1")
		require.NoError(t, err)
		roomID, err = e.matchmaker.Leave("p1")
		assert.NoError(t, err, "重複離開")
		assert.Empty(t, roomID)
	})
}

// TestMatchmaker_ConcurrentRandomMatch 測試並發配對不會超過房間上限
func TestMatchmaker_ConcurrentRandomMatch(t *testing.T) {
	e := newEngine(t, testGameConfig())

	const players = 200
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := range players {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.matchmaker.FindOrCreateRandomMatch(fmt.Sprintf("player_%d", i), 1, 4); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, failures.Load())

	total := 0
	for _, snap := range e.registry.List("") {
		assert.LessOrEqual(t, snap.PlayerCount(), snap.MaxPlayers)
		total += snap.PlayerCount()
	}
	assert.Equal(t, players, total, "每位玩家剛好在一個房間")
}

// TestMatchmaker_SamePlayerConcurrent 測試同一玩家同時配對只會進入一個房間
func TestMatchmaker_SamePlayerConcurrent(t *testing.T) {
	e := newEngine(t, testGameConfig())

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.matchmaker.FindOrCreateRandomMatch("p1", 1, 2); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, 1, e.registry.Len())
}

// cancellingScopes 在玩家被加入廣播範圍的瞬間（尚未進入索引）送出取消
type cancellingScopes struct {
	matchmaker *internal.Matchmaker
	playerID   string
}

func (s *cancellingScopes) JoinScope(_, playerID string) {
	if playerID == s.playerID {
		_, _ = s.matchmaker.Leave(playerID)
	}
}

func (s *cancellingScopes) LeaveScope(string, string) {}

// TestMatchmaker_CancelDuringJoin 加入途中取消，加入完成後被撤銷
func TestMatchmaker_CancelDuringJoin(t *testing.T) {
	tests := []struct {
		name      string
		seed      bool
		join      func(m *internal.Matchmaker) (internal.RoomSnapshot, error)
		wantRooms int
	}{
		{
			name: "random match creates room",
			join: func(m *internal.Matchmaker) (internal.RoomSnapshot, error) {
				return m.FindOrCreateRandomMatch("quitter", 1, 2)
			},
			wantRooms: 0,
		},
		{
			name: "random match joins existing room",
			seed: true,
			join: func(m *internal.Matchmaker) (internal.RoomSnapshot, error) {
				return m.FindOrCreateRandomMatch("quitter", 1, 3)
			},
			wantRooms: 1,
		},
		{
			name: "private room",
			join: func(m *internal.Matchmaker) (internal.RoomSnapshot, error) {
				return m.CreatePrivateRoom("quitter", 1, 2)
			},
			wantRooms: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, testGameConfig())
			if tt.seed {
				_, err := e.matchmaker.FindOrCreateRandomMatch("host", 1, 3)
				require.NoError(t, err)
			}
			e.matchmaker.UseScopes(&cancellingScopes{matchmaker: e.matchmaker, playerID: "quitter"})

			_, err := tt.join(e.matchmaker)
			assert.ErrorIs(t, err, internal.ErrMatchCancelled)

			_, inRoom := e.registry.RoomOf("quitter")
			assert.False(t, inRoom, "取消後不應留在房間")
			assert.Equal(t, tt.wantRooms, e.registry.Len())
			assert.Zero(t, e.codes.Len())

			// 取消標記不殘留：之後可以正常配對
			e.matchmaker.UseScopes(nil)
			_, err = e.matchmaker.FindOrCreateRandomMatch("quitter", 1, 2)
			assert.NoError(t, err)
		})
	}
}

// TestMatchmaker_LeaveWithoutPendingJoin 不在房間也沒有加入中時 Leave 為 no-op
func TestMatchmaker_LeaveWithoutPendingJoin(t *testing.T) {
	e := newEngine(t, testGameConfig())

	roomID, err := e.matchmaker.Leave("nobody")
	require.NoError(t, err)
	assert.Empty(t, roomID)

	snap, err := e.matchmaker.FindOrCreateRandomMatch("nobody", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.PlayerCount())
}
