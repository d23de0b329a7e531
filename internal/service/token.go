package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/upscpath/prep-platform/internal/models"
)

// TokenClaims — разобранное содержимое bearer-токена.
type TokenClaims struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Role      string
}

// TokenManager отвечает за выпуск и проверку JWT. Платформа выдаёт один
// bearer-токен; отзыв реализуется через auth_sessions, идентификатор
// сессии зашит в клейм sid.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// TTL возвращает срок жизни выдаваемых токенов.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue выпускает токен для пользователя, привязанный к auth-сессии.
func (m *TokenManager) Issue(user *models.User, sessionID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.ttl)

	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"sid":  sessionID.String(),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token manager: не удалось подписать токен: %w", err)
	}

	return token, exp, nil
}

// Parse проверяет подпись и срок токена и извлекает клеймы.
func (m *TokenManager) Parse(token string) (*TokenClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		if err == nil {
			err = jwt.ErrTokenInvalidClaims
		}
		return nil, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}

	sub, _ := claims["sub"].(string)
	sid, _ := claims["sid"].(string)
	role, _ := claims["role"].(string)

	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, jwt.ErrTokenInvalidClaims
	}
	sessionID, err := uuid.Parse(sid)
	if err != nil {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return &TokenClaims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
	}, nil
}
