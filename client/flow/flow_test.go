package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/upscpath/prep-platform/client/api"
	"github.com/upscpath/prep-platform/client/session"
)

// fakeClock выдаёт тикеры, которыми управляет тест.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	return &fakeTicker{ch: make(chan time.Time)}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// fakeAPI — управляемая реализация SessionAPI.
type fakeAPI struct {
	lastSignupEmail string
	lastSignupPhone string
	lastResendType  string
	resetCalls      int
	resendCalls     int

	status   api.Status
	loginErr error
	resetErr error
}

func (a *fakeAPI) CreateSignupSession(_ context.Context, email, phone, _ string) (*api.Session, error) {
	a.lastSignupEmail = email
	a.lastSignupPhone = phone
	return &api.Session{SessionKey: "sess-1", ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
}

func (a *fakeAPI) VerifySignupOTPs(context.Context, string, string, string) (*api.Status, error) {
	st := a.status
	return &st, nil
}

func (a *fakeAPI) CompleteSignup(_ context.Context, _, _, firstName, lastName string) (*api.AuthPayload, error) {
	return &api.AuthPayload{
		Token: "token-1",
		User:  &session.User{ID: "u-1", Email: a.lastSignupEmail, FirstName: firstName, LastName: lastName},
	}, nil
}

func (a *fakeAPI) Login(_ context.Context, identifier, _ string) (*api.AuthPayload, error) {
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return &api.AuthPayload{Token: "token-1", User: &session.User{ID: "u-1", Email: identifier}}, nil
}

func (a *fakeAPI) CreateResetSession(context.Context, string) (*api.Session, error) {
	return &api.Session{SessionKey: "reset-1", ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
}

func (a *fakeAPI) ResetPassword(context.Context, string, string, string, string) error {
	a.resetCalls++
	return a.resetErr
}

func (a *fakeAPI) Resend(_ context.Context, _, channel string) (*api.Session, error) {
	a.resendCalls++
	a.lastResendType = channel
	return &api.Session{SessionKey: "sess-1", ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
}

func (a *fakeAPI) SessionStatus(context.Context, string) (*api.Status, error) {
	st := a.status
	return &st, nil
}

func newTestStore() *session.Store {
	return session.NewStore(session.NewMemoryStorage(), "http://localhost", nil)
}

func TestSignupFlow_ContactInfo(t *testing.T) {
	fake := &fakeAPI{}
	f := NewSignupFlow(fake, newTestStore(), &fakeClock{}, DefaultConfig())
	defer f.Close()

	if err := f.SubmitContactInfo("Priya Sharma", "priya@example.com", "XX", "9876543210"); err == nil {
		t.Fatal("ожидалась ошибка для неизвестной страны")
	}
	if f.Step() != StepContactInfo {
		t.Fatalf("поток ушёл с шага контактов: %d", f.Step())
	}

	if err := f.SubmitContactInfo("Priya Sharma", "priya@example.com", "IN", "98765 43210"); err != nil {
		t.Fatalf("отправка контактов не удалась: %v", err)
	}
	if fake.lastSignupPhone != "+919876543210" {
		t.Fatalf("ожидался номер +919876543210, получен %s", fake.lastSignupPhone)
	}
	if f.Step() != StepOtpVerification {
		t.Fatalf("ожидался шаг верификации, получен %d", f.Step())
	}
	if f.TimeRemaining() != 600 {
		t.Fatalf("ожидалось 600 секунд окна, получено %d", f.TimeRemaining())
	}

	first, last := f.Names()
	if first != "Priya" || last != "Sharma" {
		t.Fatalf("имя не разобрано: %q %q", first, last)
	}
}

func TestSignupFlow_PartialVerification(t *testing.T) {
	fake := &fakeAPI{status: api.Status{EmailVerified: true, PhoneVerified: false}}
	f := NewSignupFlow(fake, newTestStore(), &fakeClock{}, DefaultConfig())
	defer f.Close()

	if err := f.SubmitContactInfo("Priya Sharma", "priya@example.com", "IN", "9876543210"); err != nil {
		t.Fatalf("отправка контактов не удалась: %v", err)
	}

	if err := f.SubmitOTPs("123456", "000000"); err != nil {
		t.Fatalf("частичное подтверждение не должно быть ошибкой: %v", err)
	}
	if f.Step() != StepOtpVerification {
		t.Fatalf("поток ушёл с шага верификации при одном канале: %d", f.Step())
	}
	if !f.EmailVerified() || f.PhoneVerified() {
		t.Fatalf("ожидался только подтверждённый email: email=%v phone=%v", f.EmailVerified(), f.PhoneVerified())
	}

	fake.status = api.Status{EmailVerified: true, PhoneVerified: true}
	if err := f.SubmitOTPs("", "654321"); err != nil {
		t.Fatalf("подтверждение второго канала не удалось: %v", err)
	}
	if f.Step() != StepProfileCompletion {
		t.Fatalf("ожидался шаг профиля, получен %d", f.Step())
	}
}

func TestSignupFlow_ResendCooldown(t *testing.T) {
	fake := &fakeAPI{}
	f := NewSignupFlow(fake, newTestStore(), &fakeClock{}, DefaultConfig())
	defer f.Close()

	if err := f.SubmitContactInfo("Priya Sharma", "priya@example.com", "IN", "9876543210"); err != nil {
		t.Fatalf("отправка контактов не удалась: %v", err)
	}

	if err := f.Resend("both"); !errors.Is(err, ErrResendNotReady) {
		t.Fatalf("ожидался отказ до окончания паузы, получено %v", err)
	}

	for i := 0; i < 59; i++ {
		f.Tick()
	}
	if f.CanResend() {
		t.Fatal("повторная отправка доступна на 59-й секунде")
	}
	f.Tick()
	if !f.CanResend() {
		t.Fatal("повторная отправка недоступна после паузы")
	}

	if err := f.Resend("email"); err != nil {
		t.Fatalf("повторная отправка не удалась: %v", err)
	}
	if fake.lastResendType != "email" {
		t.Fatalf("ожидался канал email, получен %s", fake.lastResendType)
	}
	if f.TimeRemaining() != 600 {
		t.Fatalf("окно не перезапущено: %d", f.TimeRemaining())
	}
	if f.ResendRemaining() != 60 {
		t.Fatalf("пауза не перезапущена: %d", f.ResendRemaining())
	}
}

func TestSignupFlow_WindowExpiry(t *testing.T) {
	fake := &fakeAPI{}
	f := NewSignupFlow(fake, newTestStore(), &fakeClock{}, DefaultConfig())
	defer f.Close()

	if err := f.SubmitContactInfo("Priya Sharma", "priya@example.com", "IN", "9876543210"); err != nil {
		t.Fatalf("отправка контактов не удалась: %v", err)
	}

	fired := 0
	for i := 0; i < 700; i++ {
		before := f.Expired()
		f.Tick()
		if f.Expired() && !before {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("истечение сработало %d раз", fired)
	}
	if f.TimeRemaining() != 0 {
		t.Fatalf("остаток после истечения не нулевой: %d", f.TimeRemaining())
	}

	if err := f.SubmitOTPs("123456", "654321"); !errors.Is(err, ErrSessionWindowExpired) {
		t.Fatalf("ожидался отказ после истечения окна, получено %v", err)
	}
}

func TestSignupFlow_ResendRecoversExpiredWindow(t *testing.T) {
	fake := &fakeAPI{status: api.Status{}}
	f := NewSignupFlow(fake, newTestStore(), &fakeClock{}, DefaultConfig())
	defer f.Close()

	if err := f.SubmitContactInfo("Priya Sharma", "priya@example.com", "IN", "9876543210"); err != nil {
		t.Fatalf("отправка контактов не удалась: %v", err)
	}
	for i := 0; i < 600; i++ {
		f.Tick()
	}
	if !f.Expired() {
		t.Fatal("окно не истекло после 600 секунд")
	}

	// Повторная отправка — единственный выход после истечения окна:
	// она обязана оставаться доступной.
	if !f.CanResend() {
		t.Fatal("повторная отправка недоступна после истечения окна")
	}
	if err := f.Resend("both"); err != nil {
		t.Fatalf("повторная отправка после истечения не удалась: %v", err)
	}
	if f.Expired() {
		t.Fatal("окно не перезапущено повторной отправкой")
	}
	if f.TimeRemaining() != 600 {
		t.Fatalf("ожидалось новое окно 600 секунд, получено %d", f.TimeRemaining())
	}

	if err := f.SubmitOTPs("123456", "654321"); err != nil {
		t.Fatalf("отправка кодов после повторной отправки отклонена: %v", err)
	}
}

func TestSignupFlow_CompleteStoresAuth(t *testing.T) {
	fake := &fakeAPI{status: api.Status{EmailVerified: true, PhoneVerified: true}}
	store := newTestStore()
	f := NewSignupFlow(fake, store, &fakeClock{}, DefaultConfig())
	defer f.Close()

	if err := f.SubmitContactInfo("Priya Sharma", "priya@example.com", "IN", "9876543210"); err != nil {
		t.Fatalf("отправка контактов не удалась: %v", err)
	}
	if err := f.SubmitOTPs("123456", "654321"); err != nil {
		t.Fatalf("подтверждение кодов не удалось: %v", err)
	}

	if err := f.SubmitProfile("Priya", "Sharma", "weak", "weak"); err == nil {
		t.Fatal("слабый пароль принят")
	}
	if err := f.SubmitProfile("Priya", "Sharma", "Str0ng!Pass", "другой"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("ожидалось несовпадение паролей, получено %v", err)
	}

	if err := f.SubmitProfile("Priya", "Sharma", "Str0ng!Pass", "Str0ng!Pass"); err != nil {
		t.Fatalf("завершение регистрации не удалось: %v", err)
	}
	if f.Step() != StepSignupDone {
		t.Fatalf("ожидался финальный шаг, получен %d", f.Step())
	}
	if !store.IsAuthenticated() {
		t.Fatal("токен не сохранён после регистрации")
	}
	token, err := store.Token()
	if err != nil || token != "token-1" {
		t.Fatalf("неожиданный токен: %q, %v", token, err)
	}
}

func TestLoginFlow_ClearsPasswordOnFailure(t *testing.T) {
	fake := &fakeAPI{loginErr: errors.New("неверный идентификатор или пароль")}
	store := newTestStore()
	f := NewLoginFlow(fake, store, &fakeClock{}, DefaultConfig())
	defer f.Close()

	f.SetIdentifier("priya@example.com")
	f.SetPassword("Str0ng!Pass")

	if err := f.Submit(); err == nil {
		t.Fatal("ожидался отказ входа")
	}
	if f.Password() != "" {
		t.Fatal("пароль не очищен после отказа")
	}
	if f.Identifier() != "priya@example.com" {
		t.Fatalf("идентификатор потерян: %q", f.Identifier())
	}
	if store.IsAuthenticated() {
		t.Fatal("сессия сохранена при отказе входа")
	}

	fake.loginErr = nil
	f.SetPassword("Str0ng!Pass")
	f.SetRememberEmail(true)
	if err := f.Submit(); err != nil {
		t.Fatalf("вход не удался: %v", err)
	}
	if !f.Done() {
		t.Fatal("поток не завершён после успешного входа")
	}
	if !store.IsAuthenticated() {
		t.Fatal("сессия не сохранена после входа")
	}
	if store.RememberedEmail() != "priya@example.com" {
		t.Fatalf("email не запомнен: %q", store.RememberedEmail())
	}
}

func TestLoginFlow_IdentifierKind(t *testing.T) {
	f := NewLoginFlow(&fakeAPI{}, newTestStore(), &fakeClock{}, DefaultConfig())
	defer f.Close()

	f.SetIdentifier("priya@example.com")
	if kind := f.IdentifierKind(); kind != "email" {
		t.Fatalf("ожидался email, получено %s", kind)
	}
	f.SetIdentifier("+919876543210")
	if kind := f.IdentifierKind(); kind != "phone" {
		t.Fatalf("ожидался phone, получено %s", kind)
	}
}

func TestForgotFlow_ClearsOnlyPasswords(t *testing.T) {
	fake := &fakeAPI{resetErr: errors.New("неверный код подтверждения")}
	f := NewForgotFlow(fake, newTestStore(), &fakeClock{}, DefaultConfig())
	defer f.Close()

	if err := f.SubmitIdentifier("priya@example.com"); err != nil {
		t.Fatalf("запрос сброса не удался: %v", err)
	}
	if f.Step() != StepResetWithOtp {
		t.Fatalf("ожидался шаг сброса, получен %d", f.Step())
	}
	if f.ResendRemaining() != 30 {
		t.Fatalf("ожидалась пауза 30 секунд, получено %d", f.ResendRemaining())
	}

	f.SetOTPs("123456", "654321")
	f.SetPasswords("Str0ng!Pass", "Str0ng!Pass")
	if err := f.SubmitReset(); err == nil {
		t.Fatal("ожидался отказ сервера")
	}

	emailOTP, phoneOTP, newPass, confirm := f.Fields()
	if emailOTP != "123456" || phoneOTP != "654321" {
		t.Fatalf("коды потеряны после отказа: %q %q", emailOTP, phoneOTP)
	}
	if newPass != "" || confirm != "" {
		t.Fatal("поля паролей не очищены после отказа")
	}

	fake.resetErr = nil
	f.SetPasswords("Str0ng!Pass", "Str0ng!Pass")
	if err := f.SubmitReset(); err != nil {
		t.Fatalf("сброс пароля не удался: %v", err)
	}
	if f.Step() != StepResetSuccess {
		t.Fatalf("ожидался шаг успеха, получен %d", f.Step())
	}
}

func TestForgotFlow_SubmitAllowedAfterWindowZero(t *testing.T) {
	fake := &fakeAPI{}
	f := NewForgotFlow(fake, newTestStore(), &fakeClock{}, DefaultConfig())
	defer f.Close()

	if err := f.SubmitIdentifier("priya@example.com"); err != nil {
		t.Fatalf("запрос сброса не удался: %v", err)
	}
	for i := 0; i < 700; i++ {
		f.Tick()
	}
	if f.TimeRemaining() != 0 {
		t.Fatalf("счётчик не дошёл до нуля: %d", f.TimeRemaining())
	}

	// Истечение окна решает сервер: форма остаётся активной.
	f.SetOTPs("123456", "654321")
	f.SetPasswords("Str0ng!Pass", "Str0ng!Pass")
	if err := f.SubmitReset(); err != nil {
		t.Fatalf("отправка после нуля отклонена клиентом: %v", err)
	}
	if fake.resetCalls != 1 {
		t.Fatalf("серверная операция не вызвана: %d", fake.resetCalls)
	}
}

func TestForgotFlow_ResendCooldown(t *testing.T) {
	fake := &fakeAPI{}
	f := NewForgotFlow(fake, newTestStore(), &fakeClock{}, DefaultConfig())
	defer f.Close()

	if err := f.SubmitIdentifier("priya@example.com"); err != nil {
		t.Fatalf("запрос сброса не удался: %v", err)
	}

	for i := 0; i < 29; i++ {
		f.Tick()
	}
	if f.CanResend() {
		t.Fatal("повторная отправка доступна на 29-й секунде")
	}
	f.Tick()
	if !f.CanResend() {
		t.Fatal("повторная отправка недоступна после 30 секунд")
	}
	if err := f.Resend("both"); err != nil {
		t.Fatalf("повторная отправка не удалась: %v", err)
	}
	if fake.resendCalls != 1 {
		t.Fatalf("ожидался один вызов повторной отправки, получено %d", fake.resendCalls)
	}
}
