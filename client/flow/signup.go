package flow

import (
	"context"
	"sync"

	"github.com/upscpath/prep-platform/client/session"
	"github.com/upscpath/prep-platform/internal/validation"
)

// SignupStep — шаг машины регистрации.
type SignupStep int

const (
	StepContactInfo SignupStep = iota
	StepOtpVerification
	StepProfileCompletion
	StepSignupDone
)

// SignupFlow — машина состояний регистрации: контактные данные →
// подтверждение кодов → завершение профиля. Ключ сессии и таймеры живут
// внутри потока; наружу отдаются только снимки состояния.
type SignupFlow struct {
	mu   sync.Mutex
	deps deps

	ctx    context.Context
	cancel context.CancelFunc

	step       SignupStep
	submitting bool
	stepErr    string

	fullName  string
	email     string
	phone     string // E.164
	firstName string
	lastName  string

	sessionKey    string
	emailVerified bool
	phoneVerified bool

	window countdown
	resend cooldown
}

// NewSignupFlow создаёт поток регистрации.
func NewSignupFlow(apiClient SessionAPI, store *session.Store, clock Clock, cfg Config) *SignupFlow {
	ctx, cancel := context.WithCancel(context.Background())
	return &SignupFlow{
		deps:   newDeps(apiClient, store, clock, cfg),
		ctx:    ctx,
		cancel: cancel,
		step:   StepContactInfo,
	}
}

// Start запускает секундный тикер потока. Останавливается через Close.
func (f *SignupFlow) Start() {
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
func (f *SignupFlow) Close() {
	f.cancel()
}

// Step возвращает текущий шаг.
func (f *SignupFlow) Step() SignupStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// TimeRemaining — секунды до истечения окна верификации.
func (f *SignupFlow) TimeRemaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window.seconds()
}

// ResendRemaining — секунды до доступности повторной отправки.
func (f *SignupFlow) ResendRemaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resend.seconds()
}

// CanResend сообщает, доступна ли повторная отправка. После истечения окна
// верификации повторная отправка — единственный путь продолжить, поэтому
// гейтом служит только пауза.
func (f *SignupFlow) CanResend() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resend.ready()
}

// Expired сообщает, истекло ли окно верификации.
func (f *SignupFlow) Expired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window.expired()
}

// EmailVerified сообщает, подтверждён ли email-канал.
func (f *SignupFlow) EmailVerified() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emailVerified
}

// PhoneVerified сообщает, подтверждён ли SMS-канал.
func (f *SignupFlow) PhoneVerified() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phoneVerified
}

// StepError — текст ошибки текущего шага, пустая строка без ошибки.
func (f *SignupFlow) StepError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stepErr
}

// Names возвращает имя и фамилию, предзаполненные из полного имени.
func (f *SignupFlow) Names() (firstName, lastName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.firstName, f.lastName
}

// Tick продвигает таймеры на секунду.
func (f *SignupFlow) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resend.tick()
	if f.window.tick() {
		f.stepErr = ErrSessionWindowExpired.Error()
	}
}

// SubmitContactInfo валидирует контактные данные и создаёт сессию
// верификации. Телефон приводится к E.164 по коду страны.
func (f *SignupFlow) SubmitContactInfo(fullName, email, countryCode, rawPhone string) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}

	if err := validation.ValidateFullName(fullName); err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}
	if err := validation.ValidateEmail(email); err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}
	if err := validation.ValidatePhoneForCountry(countryCode, rawPhone); err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}
	phone, err := validation.FormatPhoneE164(countryCode, rawPhone)
	if err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}

	f.submitting = true
	ctx := f.ctx
	apiClient := f.deps.api
	f.mu.Unlock()

	sess, err := apiClient.CreateSignupSession(ctx, email, phone, fullName)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		f.stepErr = err.Error()
		return err
	}

	f.fullName = fullName
	f.email = email
	f.phone = phone
	f.firstName, f.lastName = validation.SplitFullName(fullName)
	f.sessionKey = sess.SessionKey
	f.emailVerified = false
	f.phoneVerified = false
	f.window.start(f.deps.cfg.ExpirySeconds)
	f.resend.start(f.deps.cfg.SignupResendCooldown)
	f.stepErr = ""
	f.step = StepOtpVerification
	return nil
}

// SubmitOTPs отправляет коды обоих каналов. Частичное подтверждение
// оставляет поток на шаге верификации; переход дальше — только когда
// подтверждены оба канала.
func (f *SignupFlow) SubmitOTPs(emailOTP, phoneOTP string) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	if f.window.expired() {
		f.stepErr = ErrSessionWindowExpired.Error()
		f.mu.Unlock()
		return ErrSessionWindowExpired
	}
	if !f.emailVerified {
		if err := validation.ValidateOTP(emailOTP); err != nil {
			f.stepErr = err.Error()
			f.mu.Unlock()
			return err
		}
	}
	if !f.phoneVerified {
		if err := validation.ValidateOTP(phoneOTP); err != nil {
			f.stepErr = err.Error()
			f.mu.Unlock()
			return err
		}
	}

	f.submitting = true
	ctx := f.ctx
	apiClient := f.deps.api
	sessionKey := f.sessionKey
	f.mu.Unlock()

	status, err := apiClient.VerifySignupOTPs(ctx, sessionKey, emailOTP, phoneOTP)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		f.stepErr = err.Error()
		return err
	}

	f.emailVerified = status.EmailVerified
	f.phoneVerified = status.PhoneVerified
	f.stepErr = ""
	if f.emailVerified && f.phoneVerified {
		f.window.stop()
		f.step = StepProfileCompletion
	}
	return nil
}

// Resend запрашивает повторную отправку кодов по каналу email|sms|both.
// Доступен только после окончания паузы; успех перезапускает окно и паузу.
func (f *SignupFlow) Resend(channel string) error {
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
	f.resend.start(f.deps.cfg.SignupResendCooldown)
	f.stepErr = ""
	return nil
}

// SubmitProfile завершает регистрацию: проверяет пароль и подтверждение,
// создаёт учётную запись и сохраняет токен с профилем в хранилище сессии.
func (f *SignupFlow) SubmitProfile(firstName, lastName, password, confirmPassword string) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	if err := validation.ValidatePassword(password); err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}
	if password != confirmPassword {
		f.stepErr = ErrPasswordMismatch.Error()
		f.mu.Unlock()
		return ErrPasswordMismatch
	}

	f.submitting = true
	ctx := f.ctx
	apiClient := f.deps.api
	sessionKey := f.sessionKey
	f.mu.Unlock()

	payload, err := apiClient.CompleteSignup(ctx, sessionKey, password, firstName, lastName)

	f.mu.Lock()
	f.submitting = false
	if err != nil {
		f.stepErr = err.Error()
		f.mu.Unlock()
		return err
	}
	f.firstName = firstName
	f.lastName = lastName
	f.stepErr = ""
	f.step = StepSignupDone
	store := f.deps.store
	f.mu.Unlock()

	if store != nil && payload.User != nil {
		return store.SetAuth(payload.Token, payload.User)
	}
	return nil
}

// Back возвращает на предыдущий шаг, сбрасывая ошибку текущего.
// Введённые данные сохраняются.
func (f *SignupFlow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stepErr = ""
	switch f.step {
	case StepOtpVerification:
		f.step = StepContactInfo
	case StepProfileCompletion:
		f.step = StepOtpVerification
	}
}
