package internal

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotAuthenticated 連線尚未完成認證
	ErrNotAuthenticated = errors.New("連線尚未認證")
	// ErrAlreadyAuthenticated 連線已綁定其他玩家
	ErrAlreadyAuthenticated = errors.New("連線已綁定其他玩家")
)

// Presence 連線 ↔ 玩家身分目錄
//
// 一個玩家同時只對應一條連線；Bind 回傳被取代的舊連線，
// 由傳輸層負責把舊連線斷開。
type Presence interface {
	Bind(ctx context.Context, connID, playerID string) (previous string, err error)
	PlayerOf(ctx context.Context, connID string) (string, error)
	ConnectionOf(ctx context.Context, playerID string) (string, error)
	Unbind(ctx context.Context, connID string) error
	// Touch 連線仍存活時延長綁定的有效期
	Touch(ctx context.Context, connID, playerID string) error
}

// MemoryPresence 單機版 Presence
type MemoryPresence struct {
	mu       sync.RWMutex
	byConn   map[string]string // connID -> playerID
	byPlayer map[string]string // playerID -> connID
}

// NewMemoryPresence 創建單機版 Presence
func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{
		byConn:   make(map[string]string),
		byPlayer: make(map[string]string),
	}
}

// Bind 綁定連線與玩家
func (p *MemoryPresence) Bind(_ context.Context, connID, playerID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 同一連線改用其他身分
	if old, ok := p.byConn[connID]; ok && old != playerID && p.byPlayer[old] == connID {
		delete(p.byPlayer, old)
	}

	previous := p.byPlayer[playerID]
	if previous == connID {
		previous = ""
	}

	p.byConn[connID] = playerID
	p.byPlayer[playerID] = connID
	return previous, nil
}

// PlayerOf 連線對應的玩家
func (p *MemoryPresence) PlayerOf(_ context.Context, connID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	playerID, ok := p.byConn[connID]
	if !ok {
		return "", ErrNotAuthenticated
	}
	return playerID, nil
}

// ConnectionOf 玩家目前的連線
func (p *MemoryPresence) ConnectionOf(_ context.Context, playerID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	connID, ok := p.byPlayer[playerID]
	if !ok {
		return "", ErrNotAuthenticated
	}
	return connID, nil
}

// Unbind 解除綁定；玩家已被新連線接手時只移除舊連線
func (p *MemoryPresence) Unbind(_ context.Context, connID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	playerID, ok := p.byConn[connID]
	if !ok {
		return nil
	}
	delete(p.byConn, connID)
	if p.byPlayer[playerID] == connID {
		delete(p.byPlayer, playerID)
	}
	return nil
}

// Touch 記憶體版沒有過期，只確認綁定存在
func (p *MemoryPresence) Touch(_ context.Context, connID, _ string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.byConn[connID]; !ok {
		return ErrNotAuthenticated
	}
	return nil
}
