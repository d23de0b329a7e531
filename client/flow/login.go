package flow

import (
	"context"
	"sync"

	"github.com/upscpath/prep-platform/client/session"
	"github.com/upscpath/prep-platform/internal/validation"
)

// LoginFlow — форма входа по email или телефону. Поле пароля живёт внутри
// потока: при отказе сервера очищается только оно, идентификатор остаётся.
type LoginFlow struct {
	mu   sync.Mutex
	deps deps

	ctx    context.Context
	cancel context.CancelFunc

	submitting bool
	stepErr    string
	done       bool

	identifier    string
	password      string
	rememberEmail bool
}

// NewLoginFlow создаёт поток входа. Запомненный email подставляется
// в идентификатор сразу.
func NewLoginFlow(apiClient SessionAPI, store *session.Store, clock Clock, cfg Config) *LoginFlow {
	ctx, cancel := context.WithCancel(context.Background())
	f := &LoginFlow{
		deps:   newDeps(apiClient, store, clock, cfg),
		ctx:    ctx,
		cancel: cancel,
	}
	if store != nil {
		if email := store.RememberedEmail(); email != "" {
			f.identifier = email
			f.rememberEmail = true
		}
	}
	return f
}

// Close отменяет запросы в полёте.
func (f *LoginFlow) Close() {
	f.cancel()
}

// SetIdentifier сохраняет введённый идентификатор.
func (f *LoginFlow) SetIdentifier(identifier string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identifier = identifier
}

// SetPassword сохраняет введённый пароль.
func (f *LoginFlow) SetPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = password
}

// SetRememberEmail переключает запоминание email.
func (f *LoginFlow) SetRememberEmail(remember bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rememberEmail = remember
}

// Identifier возвращает текущий идентификатор.
func (f *LoginFlow) Identifier() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identifier
}

// Password возвращает текущее значение поля пароля.
func (f *LoginFlow) Password() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.password
}

// IdentifierKind — "email" либо "phone", для подсказки в форме.
func (f *LoginFlow) IdentifierKind() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return validation.DetectIdentifierKind(f.identifier)
}

// Done сообщает, завершился ли вход успехом.
func (f *LoginFlow) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// StepError — текст ошибки формы, пустая строка без ошибки.
func (f *LoginFlow) StepError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stepErr
}

// Submit выполняет вход. Отказ сервера очищает только поле пароля;
// успех сохраняет токен с профилем и, по флагу, email для следующего входа.
func (f *LoginFlow) Submit() error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	if err := validation.ValidateIdentifier(f.identifier); err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}
	if err := validation.ValidateLength("пароль", f.password, 8, 128); err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}

	f.submitting = true
	ctx := f.ctx
	apiClient := f.deps.api
	identifier := f.identifier
	password := f.password
	f.mu.Unlock()

	payload, err := apiClient.Login(ctx, identifier, password)

	f.mu.Lock()
	f.submitting = false
	if err != nil {
		f.password = ""
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}
	f.password = ""
	f.stepErr = ""
	f.done = true
	store := f.deps.store
	remember := f.rememberEmail
	f.mu.Unlock()

	if store == nil {
		return nil
	}
	if payload.User != nil {
		if err := store.SetAuth(payload.Token, payload.User); err != nil {
			return err
		}
		if remember && payload.User.Email != "" {
			_ = store.RememberEmail(payload.User.Email)
		} else if !remember {
			_ = store.ForgetEmail()
		}
	}
	return nil
}
