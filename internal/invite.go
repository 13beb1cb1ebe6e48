package internal

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

const (
	inviteCodeLength   = 6
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// InviteCodes 私人房間邀請碼分配器（code → roomID）
//
// Allocate 保證回傳的碼不在目前使用中的集合內；碰撞時重新產生。
type InviteCodes struct {
	mu       sync.Mutex
	codes    map[string]string
	generate func() string
}

// InviteOption 分配器選項
type InviteOption func(*InviteCodes)

// WithCodeGenerator 替換產生器（測試碰撞用）
func WithCodeGenerator(gen func() string) InviteOption {
	return func(c *InviteCodes) {
		c.generate = gen
	}
}

// NewInviteCodes 創建分配器
func NewInviteCodes(opts ...InviteOption) *InviteCodes {
	c := &InviteCodes{
		codes:    make(map[string]string),
		generate: randomInviteCode,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Allocate 為房間分配一個未使用的邀請碼
func (c *InviteCodes) Allocate(roomID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		code := c.generate()
		if _, taken := c.codes[code]; taken {
			continue
		}
		c.codes[code] = roomID
		return code
	}
}

// Resolve 邀請碼 → 房間 ID（不分大小寫）
func (c *InviteCodes) Resolve(code string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	roomID, ok := c.codes[strings.ToUpper(code)]
	return roomID, ok
}

// Release 釋放邀請碼，重複釋放為 no-op
func (c *InviteCodes) Release(code string) {
	if code == "" {
		return
	}
	c.mu.Lock()
	delete(c.codes, code)
	c.mu.Unlock()
}

// Len 使用中的邀請碼數量
func (c *InviteCodes) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.codes)
}

// randomInviteCode 產生 6 碼大寫英數
func randomInviteCode() string {
	b := make([]byte, inviteCodeLength)
	for i := range b {
		b[i] = inviteCodeAlphabet[randIndex(len(inviteCodeAlphabet))]
	}
	return string(b)
}

// randIndex 從 crypto/rand 取 [0, n) 的索引
//
// 讀取失敗代表系統亂數源不可用，邀請碼不能退回可預測的值。
func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("invite: crypto/rand unavailable: %v", err))
	}
	return int(v.Int64())
}
