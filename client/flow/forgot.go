package flow

import (
	"context"
	"sync"

	"github.com/upscpath/prep-platform/client/session"
	"github.com/upscpath/prep-platform/internal/validation"
)

// ForgotStep — шаг машины сброса пароля.
type ForgotStep int

const (
	StepIdentify ForgotStep = iota
	StepResetWithOtp
	StepResetSuccess
)

// ForgotFlow — машина состояний сброса пароля: идентификатор → коды обоих
// каналов вместе с новым паролем → успех. Частичного подтверждения здесь
// нет: проверка кодов и смена пароля — одна серверная операция.
type ForgotFlow struct {
	mu   sync.Mutex
	deps deps

	ctx    context.Context
	cancel context.CancelFunc

	step       ForgotStep
	submitting bool
	stepErr    string

	identifier string
	sessionKey string

	emailOTP        string
	phoneOTP        string
	newPassword     string
	confirmPassword string

	window countdown
	resend cooldown
}

// NewForgotFlow создаёт поток сброса пароля.
func NewForgotFlow(apiClient SessionAPI, store *session.Store, clock Clock, cfg Config) *ForgotFlow {
	ctx, cancel := context.WithCancel(context.Background())
	return &ForgotFlow{
		deps:   newDeps(apiClient, store, clock, cfg),
		ctx:    ctx,
		cancel: cancel,
		step:   StepIdentify,
	}
}

// Start запускает секундный тикер потока. Останавливается через Close.
func (f *ForgotFlow) Start() {
	ticker := f.deps.clock.NewTicker(tickInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-f.ctx.Done():
				return
			case <-ticker.C():
				f.Tick()
			}
		}
	}()
}

// Close останавливает тикер и отменяет запросы в полёте.
func (f *ForgotFlow) Close() {
	f.cancel()
}

// Step возвращает текущий шаг.
func (f *ForgotFlow) Step() ForgotStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// TimeRemaining — секунды до истечения окна верификации.
func (f *ForgotFlow) TimeRemaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window.seconds()
}

// ResendRemaining — секунды до доступности повторной отправки.
func (f *ForgotFlow) ResendRemaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resend.seconds()
}

// CanResend сообщает, доступна ли повторная отправка.
func (f *ForgotFlow) CanResend() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resend.ready()
}

// StepError — текст ошибки текущего шага, пустая строка без ошибки.
func (f *ForgotFlow) StepError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stepErr
}

// Tick продвигает таймеры на секунду. Истечение окна здесь лишь обнуляет
// счётчик на экране: отправку формы решает сервер, не клиент.
func (f *ForgotFlow) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resend.tick()
	f.window.tick()
}

// SetOTPs сохраняет введённые коды.
func (f *ForgotFlow) SetOTPs(emailOTP, phoneOTP string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emailOTP = emailOTP
	f.phoneOTP = phoneOTP
}

// SetPasswords сохраняет новый пароль и подтверждение.
func (f *ForgotFlow) SetPasswords(newPassword, confirmPassword string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newPassword = newPassword
	f.confirmPassword = confirmPassword
}

// Fields возвращает текущие значения полей формы сброса.
func (f *ForgotFlow) Fields() (emailOTP, phoneOTP, newPassword, confirmPassword string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emailOTP, f.phoneOTP, f.newPassword, f.confirmPassword
}

// SubmitIdentifier создаёт сессию сброса по email или телефону.
func (f *ForgotFlow) SubmitIdentifier(identifier string) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	if err := validation.ValidateIdentifier(identifier); err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}

	f.submitting = true
	ctx := f.ctx
	apiClient := f.deps.api
	f.mu.Unlock()

	sess, err := apiClient.CreateResetSession(ctx, identifier)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		f.stepErr = err.Error()
		return err
	}

	f.identifier = identifier
	f.sessionKey = sess.SessionKey
	f.emailOTP = ""
	f.phoneOTP = ""
	f.newPassword = ""
	f.confirmPassword = ""
	f.window.start(f.deps.cfg.ExpirySeconds)
	f.resend.start(f.deps.cfg.ResetResendCooldown)
	f.stepErr = ""
	f.step = StepResetWithOtp
	return nil
}

// SubmitReset отправляет оба кода и новый пароль одной операцией. Отказ
// сервера очищает только поля паролей: коды остаются для правки.
func (f *ForgotFlow) SubmitReset() error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	if err := validation.ValidateOTP(f.emailOTP); err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}
	if err := validation.ValidateOTP(f.phoneOTP); err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}
	if err := validation.ValidatePassword(f.newPassword); err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}
	if f.newPassword != f.confirmPassword {
		f.stepErr = ErrPasswordMismatch.Error()
		f.mu.Unlock()
		return ErrPasswordMismatch
	}

	f.submitting = true
	ctx := f.ctx
	apiClient := f.deps.api
	sessionKey := f.sessionKey
	emailOTP := f.emailOTP
	phoneOTP := f.phoneOTP
	newPassword := f.newPassword
	f.mu.Unlock()

	err := apiClient.ResetPassword(ctx, sessionKey, emailOTP, phoneOTP, newPassword)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		f.newPassword = ""
		f.confirmPassword = ""
		f.stepErr = err.Error()
		return err
	}

	f.newPassword = ""
	f.confirmPassword = ""
	f.emailOTP = ""
	f.phoneOTP = ""
	f.window.stop()
	f.stepErr = ""
	f.step = StepResetSuccess
	return nil
}

// Resend запрашивает повторную отправку кодов по каналу email|sms|both.
func (f *ForgotFlow) Resend(channel string) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	if !f.resend.ready() {
		f.mu.Unlock()
		return ErrResendNotReady
	}

	f.submitting = true
	ctx := f.ctx
	apiClient := f.deps.api
	sessionKey := f.sessionKey
	f.mu.Unlock()

	_, err := apiClient.Resend(ctx, sessionKey, channel)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		f.stepErr = err.Error()
		return err
	}

	f.window.start(f.deps.cfg.ExpirySeconds)
	f.resend.start(f.deps.cfg.ResetResendCooldown)
	f.stepErr = ""
	return nil
}

// Back возвращает к вводу идентификатора, сбрасывая ошибку шага.
func (f *ForgotFlow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stepErr = ""
	if f.step == StepResetWithOtp {
		f.step = StepIdentify
	}
}
