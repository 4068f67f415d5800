package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const RoleAdmin = "admin"

// Principal - владелец access токена.
type Principal struct {
	UserID   uuid.UUID
	Role     string
	TenantID *uuid.UUID
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// TokenManager проверяет access токены, выпущенные сервисом авторизации.
// Issue нужен для служебных токенов и тестов.
type TokenManager struct {
	accessSecret []byte
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(accessSecret string) *TokenManager {
	return &TokenManager{accessSecret: []byte(accessSecret)}
}

// Issue выпускает access токен для principal.
func (m *TokenManager) Issue(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  p.UserID.String(),
		"role": p.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if p.TenantID != nil {
		claims["tenant_id"] = p.TenantID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.accessSecret)
}

// ParseAccess извлекает principal из access токена.
func (m *TokenManager) ParseAccess(token string) (Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}
	userID, err := uuid.Parse(sub)
	if err != nil || userID == uuid.Nil {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}

	p := Principal{UserID: userID}
	p.Role, _ = claims["role"].(string)

	if raw, ok := claims["tenant_id"].(string); ok && raw != "" {
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			return Principal{}, jwt.ErrTokenInvalidClaims
		}
		p.TenantID = &tenantID
	}
	return p, nil
}
