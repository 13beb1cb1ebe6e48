package internal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 整個服務的配置
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Game GameConfig `yaml:"game"`

	Auth AuthConfig `yaml:"auth"`

	Redis RedisConfig `yaml:"redis"`

	NATS NATSConfig `yaml:"nats"`

	WebSocket WebSocketConfig `yaml:"websocket"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// GameConfig 突襲遊戲參數
type GameConfig struct {
	GameDuration       time.Duration `yaml:"game_duration"`
	FeverDuration      time.Duration `yaml:"fever_duration"`
	ItemDamage         int           `yaml:"item_damage"`
	BossHealthPerLevel int           `yaml:"boss_health_per_level"`
	MaxBossLevel       int           `yaml:"max_boss_level"`
	FeverStepPercent   int           `yaml:"fever_step_percent"` // 每累積多少 % 傷害觸發一次 Fever
	MinPlayers         int           `yaml:"min_players"`
	MaxPlayers         int           `yaml:"max_players"`
}

// AuthConfig 連線認證
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// RedisConfig Presence 儲存；Addr 為空時使用記憶體版
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	PresenceTTL time.Duration `yaml:"presence_ttl"`
}

// NATSConfig 房間事件轉發；URL 為空時停用
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// WebSocketConfig 連線參數
type WebSocketConfig struct {
	MessagesPerSecond float64       `yaml:"messages_per_second"`
	Burst             int           `yaml:"burst"`
	SendBuffer        int           `yaml:"send_buffer"`
	PongWait          time.Duration `yaml:"pong_wait"`
	PingPeriod        time.Duration `yaml:"ping_period"`
	WriteWait         time.Duration `yaml:"write_wait"`
}

// DefaultGameConfig 預設遊戲參數
func DefaultGameConfig() GameConfig {
	return GameConfig{
		GameDuration:       30 * time.Minute,
		FeverDuration:      30 * time.Second,
		ItemDamage:         100,
		BossHealthPerLevel: 10000,
		MaxBossLevel:       10,
		FeverStepPercent:   30,
		MinPlayers:         2,
		MaxPlayers:         4,
	}
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second

	cfg.Game = DefaultGameConfig()

	cfg.Auth.JWTSecret = "change-me"
	cfg.Auth.Issuer = "raid-room"

	cfg.Redis.PoolSize = 10
	cfg.Redis.PresenceTTL = 24 * time.Hour

	cfg.NATS.SubjectPrefix = "raid.rooms"

	cfg.WebSocket = WebSocketConfig{
		MessagesPerSecond: 20,
		Burst:             40,
		SendBuffer:        256,
		PongWait:          60 * time.Second,
		PingPeriod:        54 * time.Second, // 必須小於 PongWait
		WriteWait:         10 * time.Second,
	}

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	return cfg
}

// LoadConfig 讀取 YAML 檔並覆蓋預設值
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	// #nosec G304 - path 來自啟動參數
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 檢查配置是否合理
func (c *Config) Validate() error {
	g := c.Game
	switch {
	case g.GameDuration <= 0:
		return fmt.Errorf("game.game_duration 必須大於 0")
	case g.FeverDuration <= 0:
		return fmt.Errorf("game.fever_duration 必須大於 0")
	case g.ItemDamage <= 0:
		return fmt.Errorf("game.item_damage 必須大於 0")
	case g.BossHealthPerLevel <= 0:
		return fmt.Errorf("game.boss_health_per_level 必須大於 0")
	case g.MaxBossLevel < 1:
		return fmt.Errorf("game.max_boss_level 至少為 1")
	case g.FeverStepPercent <= 0 || g.FeverStepPercent > 100:
		return fmt.Errorf("game.fever_step_percent 必須在 1-100 之間")
	case g.MinPlayers < 1 || g.MaxPlayers < g.MinPlayers:
		return fmt.Errorf("game.min_players/max_players 不合法: %d-%d", g.MinPlayers, g.MaxPlayers)
	}

	ws := c.WebSocket
	switch {
	case ws.PingPeriod >= ws.PongWait:
		return fmt.Errorf("websocket.ping_period 必須小於 pong_wait")
	case ws.MessagesPerSecond <= 0 || ws.Burst < 1:
		return fmt.Errorf("websocket.messages_per_second/burst 必須大於 0")
	case ws.SendBuffer < 1:
		return fmt.Errorf("websocket.send_buffer 必須大於 0")
	}

	return nil
}
