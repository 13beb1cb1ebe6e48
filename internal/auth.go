package internal

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 認證失敗
var ErrInvalidToken = errors.New("無效的認證令牌")

// PlayerClaims 連線認證的 JWT 內容
type PlayerClaims struct {
	PlayerID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenVerifier 把連線帶來的令牌解析成穩定的玩家身分
//
// 核心本身不處理認證，只透過 Presence 取得 playerID。
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier 創建令牌驗證器
func NewTokenVerifier(cfg AuthConfig) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// Issue 簽發玩家令牌（測試與管理工具使用）
func (v *TokenVerifier) Issue(playerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := PlayerClaims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    v.issuer,
			Subject:   playerID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify 驗證令牌並回傳玩家 ID
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &PlayerClaims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*PlayerClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	playerID := claims.PlayerID
	if playerID == "" {
		playerID = claims.Subject
	}
	if playerID == "" {
		return "", fmt.Errorf("%w: 缺少玩家 ID", ErrInvalidToken)
	}
	return playerID, nil
}
