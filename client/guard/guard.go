// Package guard — защита клиентских маршрутов: решает, пускать ли на
// защищённую страницу, и запоминает, куда пользователь шёл до входа.
package guard

import (
	"context"
	"errors"

	"github.com/upscpath/prep-platform/client/session"
)

// State — исход проверки доступа.
type State int

const (
	// StatePending — проверка токена на сервере ещё идёт.
	StatePending State = iota
	// StateAllowed — доступ разрешён.
	StateAllowed
	// StateRedirect — доступ запрещён, требуется переход на вход.
	StateRedirect
)

// LoginPath — путь страницы входа по умолчанию.
const LoginPath = "/login"

// Decision — решение guard по запрошенному маршруту.
type Decision struct {
	State      State
	Intended   string // куда пользователь шёл; возвращается после входа
	RedirectTo string // заполнен при StateRedirect
}

// Guard проверяет доступ к маршрутам по состоянию сессии.
type Guard struct {
	store     *session.Store
	loginPath string
}

// New создаёт guard поверх хранилища сессии.
func New(store *session.Store) *Guard {
	return &Guard{store: store, loginPath: LoginPath}
}

// Check решает судьбу перехода на intended. Локальное отсутствие токена —
// немедленный редирект без похода на сервер; при наличии токена он
// подтверждается сервером, отозванный токен очищает сессию и редиректит.
func (g *Guard) Check(ctx context.Context, intended string) Decision {
	if !g.store.IsAuthenticated() {
		return Decision{State: StateRedirect, Intended: intended, RedirectTo: g.loginPath}
	}

	if _, err := g.store.VerifyToken(ctx); err != nil {
		if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrNotAuthenticated) {
			return Decision{State: StateRedirect, Intended: intended, RedirectTo: g.loginPath}
		}
		// Сетевой сбой не выбрасывает пользователя: решение откладывается.
		return Decision{State: StatePending, Intended: intended}
	}

	return Decision{State: StateAllowed, Intended: intended}
}

// CheckLocal решает по локальному состоянию, без похода на сервер.
// Подходит для мгновенной отрисовки, пока Check подтверждает токен.
func (g *Guard) CheckLocal(intended string) Decision {
	if !g.store.IsAuthenticated() {
		return Decision{State: StateRedirect, Intended: intended, RedirectTo: g.loginPath}
	}
	return Decision{State: StatePending, Intended: intended}
}
