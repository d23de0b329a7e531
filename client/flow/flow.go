// Package flow — клиентские машины состояний многошаговой аутентификации:
// регистрация, вход и сброс пароля. Каждый поток держит состояние формы,
// секундные таймеры окна верификации и кулдауна повторной отправки; тик
// часов приходит снаружи, поэтому потоки детерминированно тестируются.
package flow

import (
	"context"
	"errors"

	"github.com/upscpath/prep-platform/client/api"
	"github.com/upscpath/prep-platform/client/session"
)

// SessionAPI — серверные операции, нужные потокам. Реализуется *api.Client.
type SessionAPI interface {
	CreateSignupSession(ctx context.Context, email, phoneNumber, fullName string) (*api.Session, error)
	VerifySignupOTPs(ctx context.Context, sessionKey, emailOTP, phoneOTP string) (*api.Status, error)
	CompleteSignup(ctx context.Context, sessionKey, password, firstName, lastName string) (*api.AuthPayload, error)
	Login(ctx context.Context, identifier, password string) (*api.AuthPayload, error)
	CreateResetSession(ctx context.Context, identifier string) (*api.Session, error)
	ResetPassword(ctx context.Context, sessionKey, emailOTP, phoneOTP, newPassword string) error
	Resend(ctx context.Context, sessionKey, channel string) (*api.Session, error)
	SessionStatus(ctx context.Context, sessionKey string) (*api.Status, error)
}

var _ SessionAPI = (*api.Client)(nil)

// Config — тайминги потоков в секундах.
type Config struct {
	ExpirySeconds        int // окно действия кодов
	SignupResendCooldown int // пауза между повторными отправками при регистрации
	ResetResendCooldown  int // пауза при сбросе пароля
}

// DefaultConfig возвращает тайминги по умолчанию.
func DefaultConfig() Config {
	return Config{
		ExpirySeconds:        600,
		SignupResendCooldown: 60,
		ResetResendCooldown:  30,
	}
}

// Ошибки, общие для всех потоков.
var (
	// ErrSubmitInFlight возвращается на повторную отправку, пока предыдущая
	// не завершилась.
	ErrSubmitInFlight = errors.New("запрос уже выполняется")

	// ErrSessionWindowExpired возвращается на отправку кодов после истечения
	// окна верификации.
	ErrSessionWindowExpired = errors.New("время сессии истекло, начните заново")

	// ErrResendNotReady возвращается на повторную отправку до окончания паузы.
	ErrResendNotReady = errors.New("повторная отправка пока недоступна")

	// ErrPasswordMismatch возвращается при несовпадении пароля и подтверждения.
	ErrPasswordMismatch = errors.New("пароли не совпадают")
)

// deps — общие зависимости потоков.
type deps struct {
	api   SessionAPI
	store *session.Store
	clock Clock
	cfg   Config
}

func newDeps(apiClient SessionAPI, store *session.Store, clock Clock, cfg Config) deps {
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.ExpirySeconds <= 0 {
		cfg = DefaultConfig()
	}
	return deps{api: apiClient, store: store, clock: clock, cfg: cfg}
}
