// Package api — клиент серверных операций верификации: создание сессии,
// проверка кодов, повторная отправка и обмен пароля на токен. Каждый вызов —
// один HTTP-запрос без повторов; сообщение сервера уходит вызывающему
// дословно, при его отсутствии используется fallback конкретной операции.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/upscpath/prep-platform/client/session"
)

// Session — созданная сервером сессия верификации: клиент держит только
// ключ и срок, коды не покидают сервер.
type Session struct {
	SessionKey string    `json:"sessionKey"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Status — состояние каналов сессии верификации.
type Status struct {
	EmailVerified bool      `json:"emailVerified"`
	PhoneVerified bool      `json:"phoneVerified"`
	Consumed      bool      `json:"consumed"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// AuthPayload — итог успешной аутентификации.
type AuthPayload struct {
	Token string        `json:"token"`
	User  *session.User `json:"user"`
}

// Client выполняет запросы к auth-эндпоинтам бэкенда.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient создаёт клиент. Нулевой httpClient заменяется клиентом
// с разумным таймаутом.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// CreateSignupSession запрашивает сессию верификации для регистрации.
func (c *Client) CreateSignupSession(ctx context.Context, email, phoneNumber, fullName string) (*Session, error) {
	var out Session
	err := c.post(ctx, "/api/auth/signup/send-otp", map[string]string{
		"email":       email,
		"phoneNumber": phoneNumber,
		"fullName":    fullName,
	}, &out, "не удалось отправить коды подтверждения")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifySignupOTPs отправляет коды обоих каналов. Частичное подтверждение —
// валидный ответ, а не ошибка.
func (c *Client) VerifySignupOTPs(ctx context.Context, sessionKey, emailOTP, phoneOTP string) (*Status, error) {
	var out Status
	err := c.post(ctx, "/api/auth/signup/verify-otp", map[string]string{
		"sessionKey": sessionKey,
		"emailOTP":   emailOTP,
		"phoneOTP":   phoneOTP,
	}, &out, "не удалось проверить коды подтверждения")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteSignup завершает регистрацию и возвращает токен с профилем.
func (c *Client) CompleteSignup(ctx context.Context, sessionKey, password, firstName, lastName string) (*AuthPayload, error) {
	var out AuthPayload
	err := c.post(ctx, "/api/auth/signup/complete", map[string]string{
		"sessionKey": sessionKey,
		"password":   password,
		"firstName":  firstName,
		"lastName":   lastName,
	}, &out, "не удалось завершить регистрацию")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login обменивает идентификатор и пароль на токен.
func (c *Client) Login(ctx context.Context, identifier, password string) (*AuthPayload, error) {
	var out AuthPayload
	err := c.post(ctx, "/api/auth/login", map[string]string{
		"identifier": identifier,
		"password":   password,
	}, &out, "не удалось войти")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateResetSession запрашивает сессию сброса пароля.
func (c *Client) CreateResetSession(ctx context.Context, identifier string) (*Session, error) {
	var out Session
	err := c.post(ctx, "/api/auth/forgot-password", map[string]string{
		"identifier": identifier,
	}, &out, "не удалось запросить сброс пароля")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword выполняет комбинированную проверку кодов и смену пароля.
func (c *Client) ResetPassword(ctx context.Context, sessionKey, emailOTP, phoneOTP, newPassword string) error {
	return c.post(ctx, "/api/auth/reset-password", map[string]string{
		"sessionKey":  sessionKey,
		"emailOTP":    emailOTP,
		"phoneOTP":    phoneOTP,
		"newPassword": newPassword,
	}, nil, "не удалось сбросить пароль")
}

// Resend запрашивает повторную отправку кодов по каналу email|sms|both.
func (c *Client) Resend(ctx context.Context, sessionKey, channel string) (*Session, error) {
	var out Session
	err := c.post(ctx, "/api/auth/resend-otp", map[string]string{
		"sessionKey": sessionKey,
		"type":       channel,
	}, &out, "не удалось отправить код повторно")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SessionStatus возвращает текущее состояние сессии верификации.
func (c *Client) SessionStatus(ctx context.Context, sessionKey string) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/auth/session/"+sessionKey+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	var out Status
	if err := c.do(req, &out, "не удалось получить статус сессии"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]string, out interface{}, fallback string) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api client: сериализация: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("api client: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out, fallback)
}

func (c *Client) do(req *http.Request, out interface{}, fallback string) error {
	resp, err := c.http.Do(req)
	if err != nil {
		// Отмена контекста доходит до вызывающего как есть: поток различает
		// закрытие формы и сетевой сбой.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("api client: запрос не удался: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api client: чтение ответа: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(serverMessage(raw, fallback))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("api client: разбор ответа: %w", err)
		}
	}
	return nil
}

// serverMessage достаёт текст ошибки из ответа сервера, иначе fallback.
func serverMessage(raw []byte, fallback string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fallback
}
