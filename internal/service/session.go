package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"sipenduk/internal/domain"
)

// Session 已认证的用户描述（客户端持有 token，服务端无会话表）
type Session struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) IsAdmin() bool { return s != nil && s.Role == domain.RoleAdmin }

// SessionManager 会话令牌签发与校验；登出由客户端清除令牌
type SessionManager interface {
	Issue(user *domain.User) (string, *Session, error)
	Validate(token string) (*Session, error)
}

type sessionClaims struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTSessionManager HS256 签名的会话令牌
type JWTSessionManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewJWTSessionManager(secret string, ttl time.Duration) *JWTSessionManager {
	return &JWTSessionManager{secret: []byte(secret), ttl: ttl, issuer: "sipenduk"}
}

var _ SessionManager = (*JWTSessionManager)(nil)

func (m *JWTSessionManager) Issue(user *domain.User) (string, *Session, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)
	claims := sessionClaims{
		Name:     user.DisplayName,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, &Session{
		UserID:    user.UserID,
		Name:      user.DisplayName,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (m *JWTSessionManager) Validate(token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrUnauthorized
	}
	return &Session{
		UserID:    claims.Subject,
		Name:      claims.Name,
		Username:  claims.Username,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
