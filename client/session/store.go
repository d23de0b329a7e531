package session

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
)

// Ключи долговременного хранилища.
const (
	storageKeyToken           = "upsc_auth_token"
	storageKeyUser            = "upsc_auth_user"
	storageKeyRememberedEmail = "upsc_remembered_email"
)

var (
	// ErrSessionExpired возвращается, когда сервер отклонил токен: локальная
	// сессия очищена, требуется повторная аутентификация.
	ErrSessionExpired = errors.New("сессия истекла, войдите заново")

	// ErrNotAuthenticated возвращается на попытку авторизованного запроса без токена.
	ErrNotAuthenticated = errors.New("требуется вход в систему")
)

// User — кэшируемый профиль пользователя.
type User struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Role          string  `json:"role"`
	EmailVerified bool    `json:"emailVerified"`
	PhoneVerified bool    `json:"phoneVerified"`
	AvatarPath    *string `json:"avatarPath,omitempty"`
}

// Store владеет bearer-токеном и профилем пользователя. Токен и профиль
// живут парой: аутентифицированность означает наличие обоих.
type Store struct {
	storage Storage
	baseURL string
	http    *http.Client
}

// NewStore создаёт хранилище сессии поверх долговременного Storage.
func NewStore(storage Storage, baseURL string, httpClient *http.Client) *Store {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Store{
		storage: storage,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Token возвращает сохранённый bearer-токен.
func (s *Store) Token() (string, error) {
	token, err := s.storage.Get(storageKeyToken)
	if err != nil {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// User возвращает кэшированный профиль.
func (s *Store) User() (*User, error) {
	raw, err := s.storage.Get(storageKeyUser)
	if err != nil {
		return nil, ErrNotAuthenticated
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("session store: профиль повреждён: %w", err)
	}
	return &user, nil
}

// IsAuthenticated сообщает, есть ли и токен, и профиль.
func (s *Store) IsAuthenticated() bool {
	if _, err := s.storage.Get(storageKeyToken); err != nil {
		return false
	}
	if _, err := s.storage.Get(storageKeyUser); err != nil {
		return false
	}
	return true
}

// SetAuth сохраняет пару токен+профиль. При ошибке записи профиля токен
// откатывается: половинчатое состояние аутентификации недопустимо.
func (s *Store) SetAuth(token string, user *User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session store: сериализация профиля: %w", err)
	}

	if err := s.storage.Set(storageKeyToken, token); err != nil {
		return err
	}
	if err := s.storage.Set(storageKeyUser, string(raw)); err != nil {
		_ = s.storage.Delete(storageKeyToken)
		return err
	}
	return nil
}

// ClearAuth удаляет токен и профиль. Идемпотентен.
func (s *Store) ClearAuth() error {
	if err := s.storage.Delete(storageKeyToken); err != nil {
		return err
	}
	return s.storage.Delete(storageKeyUser)
}

// RememberEmail сохраняет email для подстановки при следующем входе.
func (s *Store) RememberEmail(email string) error {
	return s.storage.Set(storageKeyRememberedEmail, email)
}

// RememberedEmail возвращает запомненный email, пустую строку если его нет.
func (s *Store) RememberedEmail() string {
	email, err := s.storage.Get(storageKeyRememberedEmail)
	if err != nil {
		return ""
	}
	return email
}

// ForgetEmail удаляет запомненный email.
func (s *Store) ForgetEmail() error {
	return s.storage.Delete(storageKeyRememberedEmail)
}

// VerifyToken проверяет токен на сервере. Отказ сервера очищает локальную
// сессию; успех обновляет кэшированный профиль.
func (s *Store) VerifyToken(ctx context.Context) (*User, error) {
	token, err := s.Token()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/auth/verify-token", nil)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session store: запрос не удался: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_ = s.ClearAuth()
		return nil, ErrSessionExpired
	}

	var payload struct {
		User User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("session store: разбор ответа: %w", err)
	}

	if raw, err := json.Marshal(payload.User); err == nil {
		_ = s.storage.Set(storageKeyUser, string(raw))
	}

	return &payload.User, nil
}

// AuthenticatedRequest выполняет запрос с bearer-заголовком. Одна попытка,
// без повторов. 401 немедленно очищает сессию и возвращает ErrSessionExpired;
// прочие неуспешные статусы отдают сообщение сервера или общий fallback.
func (s *Store) AuthenticatedRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	token, err := s.Token()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("session store: сериализация тела: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session store: запрос не удался: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("session store: чтение ответа: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_ = s.ClearAuth()
		return nil, ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(serverMessage(raw, "запрос отклонён сервером"))
	}

	return raw, nil
}

// Logout отзывает токен на сервере (best-effort) и очищает локальную сессию.
func (s *Store) Logout(ctx context.Context) error {
	if _, err := s.AuthenticatedRequest(ctx, http.MethodPost, "/api/auth/logout", nil); err != nil && !errors.Is(err, ErrSessionExpired) && !errors.Is(err, ErrNotAuthenticated) {
		// Локальная сессия очищается в любом случае.
		_ = s.ClearAuth()
		return err
	}
	return s.ClearAuth()
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
