package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-raid-room/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig 測試預設配置可用
func TestDefaultConfig(t *testing.T) {
	cfg := internal.DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Game.GameDuration)
	assert.Equal(t, 2, cfg.Game.MinPlayers)
	assert.Equal(t, 4, cfg.Game.MaxPlayers)
	assert.Empty(t, cfg.Redis.Addr, "預設使用記憶體 Presence")
	assert.Empty(t, cfg.NATS.URL, "預設不轉發")
}

// TestLoadConfig 測試 YAML 覆蓋預設值
func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantErr  bool
		validate func(t *testing.T, cfg *internal.Config)
	}{
		{
			name: "partial override",
			content: `
server:
  port: 9090
game:
  game_duration: 10m
  item_damage: 250
redis:
  addr: localhost:6379
nats:
  url: nats://localhost:4222
log:
  format: json
`,
			validate: func(t *testing.T, cfg *internal.Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 10*time.Minute, cfg.Game.GameDuration)
				assert.Equal(t, 250, cfg.Game.ItemDamage)
				assert.Equal(t, 30*time.Second, cfg.Game.FeverDuration, "未指定的保留預設")
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, 10, cfg.Redis.PoolSize)
				assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
				assert.Equal(t, "raid.rooms", cfg.NATS.SubjectPrefix)
				assert.Equal(t, "json", cfg.Log.Format)
				assert.Equal(t, "info", cfg.Log.Level)
			},
		},
		{
			name: "invalid player bounds",
			content: `
game:
  min_players: 4
  max_players: 2
`,
			wantErr: true,
		},
		{
			name: "ping must be shorter than pong",
			content: `
websocket:
  ping_period: 90s
`,
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			content: "server: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			cfg, err := internal.LoadConfig(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

// TestLoadConfig_MissingFile 測試檔案不存在
func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := internal.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
