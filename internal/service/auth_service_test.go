package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/upscpath/prep-platform/internal/models"
	"github.com/upscpath/prep-platform/internal/pkg/apperror"
	"github.com/upscpath/prep-platform/internal/repository"
)

// mockUserStore реализует UserStore для тестов.
type mockUserStore struct {
	usersByEmail map[string]*models.User
	usersByPhone map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	authSessions map[uuid.UUID]*models.AuthSession
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		usersByEmail: make(map[string]*models.User),
		usersByPhone: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		authSessions: make(map[uuid.UUID]*models.AuthSession),
	}
}

func (m *mockUserStore) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	m.usersByEmail[user.Email] = user
	m.usersByPhone[user.Phone] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserStore) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	if user, ok := m.usersByPhone[phone]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserStore) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	user, ok := m.usersByID[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = hash
	return nil
}

func (m *mockUserStore) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if user, ok := m.usersByID[userID]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

func (m *mockUserStore) CreateAuthSession(ctx context.Context, session *models.AuthSession) error {
	session.CreatedAt = time.Now()
	m.authSessions[session.ID] = session
	return nil
}

func (m *mockUserStore) GetAuthSession(ctx context.Context, sessionID uuid.UUID) (*models.AuthSession, error) {
	if session, ok := m.authSessions[sessionID]; ok {
		return session, nil
	}
	return nil, repository.ErrAuthSessionNotFound
}

func (m *mockUserStore) DeleteAuthSession(ctx context.Context, sessionID uuid.UUID) error {
	delete(m.authSessions, sessionID)
	return nil
}

func (m *mockUserStore) DeleteUserAuthSessions(ctx context.Context, userID uuid.UUID) error {
	for id, s := range m.authSessions {
		if s.UserID == userID {
			delete(m.authSessions, id)
		}
	}
	return nil
}

// mockVerificationStore реализует VerificationStore для тестов.
type mockVerificationStore struct {
	sessions map[string]*models.VerificationSession
}

func newMockVerificationStore() *mockVerificationStore {
	return &mockVerificationStore{sessions: make(map[string]*models.VerificationSession)}
}

func (m *mockVerificationStore) Create(ctx context.Context, s *models.VerificationSession) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	m.sessions[s.SessionKey] = s
	return nil
}

func (m *mockVerificationStore) GetByKey(ctx context.Context, sessionKey string) (*models.VerificationSession, error) {
	if s, ok := m.sessions[sessionKey]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, repository.ErrVerificationSessionNotFound
}

func (m *mockVerificationStore) MarkChannelVerified(ctx context.Context, sessionKey, channel string) error {
	s, ok := m.sessions[sessionKey]
	if !ok {
		return repository.ErrVerificationSessionNotFound
	}
	if channel == models.VerificationChannelSMS {
		s.PhoneVerified = true
	} else {
		s.EmailVerified = true
	}
	return nil
}

func (m *mockVerificationStore) IncrementAttempts(ctx context.Context, sessionKey, channel string) error {
	s, ok := m.sessions[sessionKey]
	if !ok {
		return repository.ErrVerificationSessionNotFound
	}
	if channel == models.VerificationChannelSMS {
		s.PhoneAttempts++
	} else {
		s.EmailAttempts++
	}
	return nil
}

func (m *mockVerificationStore) ResetCodes(ctx context.Context, sessionKey, emailCode, phoneCode string, resendAfter, expiresAt time.Time) error {
	s, ok := m.sessions[sessionKey]
	if !ok {
		return repository.ErrVerificationSessionNotFound
	}
	if !s.EmailVerified {
		s.EmailCode = emailCode
	}
	if !s.PhoneVerified {
		s.PhoneCode = phoneCode
	}
	s.ResendAfter = resendAfter
	s.ExpiresAt = expiresAt
	return nil
}

func (m *mockVerificationStore) Consume(ctx context.Context, sessionKey string) error {
	s, ok := m.sessions[sessionKey]
	if !ok || s.Consumed {
		return repository.ErrVerificationSessionNotFound
	}
	s.Consumed = true
	return nil
}

type nopSender struct{}

func (nopSender) SendOTP(ctx context.Context, to, code string) error { return nil }

func newTestAuthService(users *mockUserStore, verifications *mockVerificationStore) *AuthService {
	return NewAuthService(
		users,
		verifications,
		NewTokenManager("test-secret", time.Hour),
		nopSender{},
		nopSender{},
		FlowTimings{OTPTTL: 10 * time.Minute, ResendCooldown: 60 * time.Second},
		FlowTimings{OTPTTL: 10 * time.Minute, ResendCooldown: 30 * time.Second},
	)
}

func TestAuthService_SignupHappyPath(t *testing.T) {
	users := newMockUserStore()
	verifications := newMockVerificationStore()
	service := newTestAuthService(users, verifications)
	ctx := context.Background()

	handle, err := service.StartSignup(ctx, StartSignupInput{
		Email:       "Aspirant@Example.com",
		PhoneNumber: "+919876543210",
		FullName:    "Priya Sharma",
	})
	if err != nil {
		t.Fatalf("start signup вернул ошибку: %v", err)
	}
	if handle.SessionKey == "" {
		t.Fatalf("sessionKey должен быть установлен")
	}

	stored := verifications.sessions[handle.SessionKey]
	if stored == nil {
		t.Fatalf("сессия должна быть сохранена")
	}
	if stored.Email != "aspirant@example.com" {
		t.Fatalf("email должен быть нормализован, получили %q", stored.Email)
	}

	status, err := service.VerifySignupOTPs(ctx, handle.SessionKey, stored.EmailCode, stored.PhoneCode)
	if err != nil {
		t.Fatalf("verify вернул ошибку: %v", err)
	}
	if !status.EmailVerified || !status.PhoneVerified {
		t.Fatalf("оба канала должны быть подтверждены: %+v", status)
	}

	result, err := service.CompleteSignup(ctx, handle.SessionKey, "Abcdef1!", "", "", map[string]string{"ip": "127.0.0.1"})
	if err != nil {
		t.Fatalf("complete вернул ошибку: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("ожидался bearer токен")
	}
	if result.User.FirstName != "Priya" || result.User.LastName != "Sharma" {
		t.Fatalf("имя должно заполняться из fullName: %+v", result.User)
	}
	if !result.User.EmailVerified || !result.User.PhoneVerified {
		t.Fatalf("пользователь должен быть отмечен как верифицированный")
	}
	if len(users.authSessions) != 1 {
		t.Fatalf("ожидалась одна auth-сессия, получили %d", len(users.authSessions))
	}

	// Повтор с тем же ключом не должен создать второй аккаунт.
	if _, err := service.CompleteSignup(ctx, handle.SessionKey, "Abcdef1!", "", "", nil); err == nil {
		t.Fatalf("повторное завершение должно вернуть ошибку")
	}
	if len(users.usersByID) != 1 {
		t.Fatalf("должен существовать ровно один пользователь, получили %d", len(users.usersByID))
	}
}

func TestAuthService_PartialVerification(t *testing.T) {
	users := newMockUserStore()
	verifications := newMockVerificationStore()
	service := newTestAuthService(users, verifications)
	ctx := context.Background()

	handle, err := service.StartSignup(ctx, StartSignupInput{
		Email:       "partial@example.com",
		PhoneNumber: "+919876543210",
		FullName:    "Arjun Verma",
	})
	if err != nil {
		t.Fatalf("start signup вернул ошибку: %v", err)
	}

	stored := verifications.sessions[handle.SessionKey]
	wrongPhone := "000000"
	if stored.PhoneCode == wrongPhone {
		wrongPhone = "000001"
	}
	wrongEmail := "999999"
	if stored.EmailCode == wrongEmail {
		wrongEmail = "999998"
	}

	// Оба кода неверны, ни один канал не подтверждён — ошибка.
	if _, err := service.VerifySignupOTPs(ctx, handle.SessionKey, wrongEmail, wrongPhone); err == nil {
		t.Fatalf("полностью неверные коды должны вернуть ошибку")
	}

	// Верный email-код с неверным SMS-кодом — частичный успех без ошибки.
	status, err := service.VerifySignupOTPs(ctx, handle.SessionKey, stored.EmailCode, wrongPhone)
	if err != nil {
		t.Fatalf("частичное подтверждение не должно быть ошибкой: %v", err)
	}
	if !status.EmailVerified || status.PhoneVerified {
		t.Fatalf("ожидался только подтверждённый email: %+v", status)
	}
	if verifications.sessions[handle.SessionKey].PhoneAttempts < 1 {
		t.Fatalf("неудачная попытка по SMS должна быть зафиксирована")
	}

	// Завершение без полной верификации запрещено.
	if _, err := service.CompleteSignup(ctx, handle.SessionKey, "Abcdef1!", "", "", nil); !errors.Is(err, apperror.ErrNotFullyVerified) {
		t.Fatalf("ожидался ErrNotFullyVerified, получили %v", err)
	}
}

func TestAuthService_ResendCooldown(t *testing.T) {
	users := newMockUserStore()
	verifications := newMockVerificationStore()
	service := newTestAuthService(users, verifications)
	ctx := context.Background()

	handle, err := service.StartSignup(ctx, StartSignupInput{
		Email:       "resend@example.com",
		PhoneNumber: "+919876543210",
		FullName:    "Neha Gupta",
	})
	if err != nil {
		t.Fatalf("start signup вернул ошибку: %v", err)
	}

	// Сразу после создания действует cooldown.
	if _, err := service.Resend(ctx, handle.SessionKey, models.VerificationChannelBoth); !errors.Is(err, apperror.ErrResendTooSoon) {
		t.Fatalf("ожидался ErrResendTooSoon, получили %v", err)
	}

	stored := verifications.sessions[handle.SessionKey]
	oldEmailCode := stored.EmailCode

	// Подтверждаем email, затем сдвигаем cooldown в прошлое.
	if _, err := service.VerifySignupOTPs(ctx, handle.SessionKey, stored.EmailCode, ""); err != nil {
		t.Fatalf("verify вернул ошибку: %v", err)
	}
	stored.ResendAfter = time.Now().Add(-time.Second)

	newHandle, err := service.Resend(ctx, handle.SessionKey, models.VerificationChannelBoth)
	if err != nil {
		t.Fatalf("resend вернул ошибку: %v", err)
	}
	if !newHandle.ExpiresAt.After(time.Now().Add(9 * time.Minute)) {
		t.Fatalf("окно сессии должно быть продлено")
	}

	// Подтверждённый канал сохраняет код, неподтверждённый получает новый cooldown.
	if verifications.sessions[handle.SessionKey].EmailCode != oldEmailCode {
		t.Fatalf("код подтверждённого канала не должен меняться")
	}
	if !time.Now().Before(verifications.sessions[handle.SessionKey].ResendAfter) {
		t.Fatalf("cooldown должен начаться заново")
	}
}

func TestAuthService_Login(t *testing.T) {
	users := newMockUserStore()
	verifications := newMockVerificationStore()
	service := newTestAuthService(users, verifications)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Abcdef1!"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "student@example.com",
		Phone:        "+919876543210",
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		IsActive:     true,
	}
	users.usersByEmail[user.Email] = user
	users.usersByPhone[user.Phone] = user
	users.usersByID[user.ID] = user

	result, err := service.Login(ctx, LoginInput{Identifier: "student@example.com", Password: "Abcdef1!"}, nil)
	if err != nil {
		t.Fatalf("login вернул ошибку: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("ожидался bearer токен")
	}

	// Вход по телефону находит тот же аккаунт.
	if _, err := service.Login(ctx, LoginInput{Identifier: "+919876543210", Password: "Abcdef1!"}, nil); err != nil {
		t.Fatalf("вход по телефону вернул ошибку: %v", err)
	}

	// Неверный пароль и неизвестный идентификатор дают одинаковую ошибку.
	_, badPassErr := service.Login(ctx, LoginInput{Identifier: "student@example.com", Password: "wrongpass"}, nil)
	_, unknownErr := service.Login(ctx, LoginInput{Identifier: "ghost@example.com", Password: "Abcdef1!"}, nil)
	if !errors.Is(badPassErr, apperror.ErrInvalidCredentials) || !errors.Is(unknownErr, apperror.ErrInvalidCredentials) {
		t.Fatalf("ожидалась единая ошибка учётных данных: %v / %v", badPassErr, unknownErr)
	}
}

func TestAuthService_ResetPasswordRevokesSessions(t *testing.T) {
	users := newMockUserStore()
	verifications := newMockVerificationStore()
	service := newTestAuthService(users, verifications)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("OldPass1!"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "reset@example.com",
		Phone:        "+919876543210",
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		IsActive:     true,
	}
	users.usersByEmail[user.Email] = user
	users.usersByPhone[user.Phone] = user
	users.usersByID[user.ID] = user

	loginRes, err := service.Login(ctx, LoginInput{Identifier: user.Email, Password: "OldPass1!"}, nil)
	if err != nil {
		t.Fatalf("login вернул ошибку: %v", err)
	}

	handle, err := service.StartReset(ctx, user.Email)
	if err != nil {
		t.Fatalf("start reset вернул ошибку: %v", err)
	}

	stored := verifications.sessions[handle.SessionKey]

	// Один код не подходит: сброс требует оба сразу.
	if err := service.ResetPassword(ctx, handle.SessionKey, stored.EmailCode, "000000", "NewPass1!"); err == nil {
		t.Fatalf("сброс с неверным SMS-кодом должен вернуть ошибку")
	}

	if err := service.ResetPassword(ctx, handle.SessionKey, stored.EmailCode, stored.PhoneCode, "NewPass1!"); err != nil {
		t.Fatalf("reset вернул ошибку: %v", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("NewPass1!")); err != nil {
		t.Fatalf("пароль должен быть обновлён")
	}
	if len(users.authSessions) != 0 {
		t.Fatalf("смена пароля должна отозвать все auth-сессии")
	}

	// Старый токен больше не проходит проверку.
	if _, err := service.VerifyToken(ctx, loginRes.Token); err == nil {
		t.Fatalf("отозванный токен не должен проходить verify")
	}

	// Сессия сброса одноразовая.
	if err := service.ResetPassword(ctx, handle.SessionKey, stored.EmailCode, stored.PhoneCode, "NewPass2!"); err == nil {
		t.Fatalf("повторный сброс по той же сессии должен вернуть ошибку")
	}
}

func TestAuthService_LogoutIdempotent(t *testing.T) {
	users := newMockUserStore()
	verifications := newMockVerificationStore()
	service := newTestAuthService(users, verifications)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Abcdef1!"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "logout@example.com",
		Phone:        "+14155552671",
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		IsActive:     true,
	}
	users.usersByEmail[user.Email] = user
	users.usersByPhone[user.Phone] = user
	users.usersByID[user.ID] = user

	res, err := service.Login(ctx, LoginInput{Identifier: user.Email, Password: "Abcdef1!"}, nil)
	if err != nil {
		t.Fatalf("login вернул ошибку: %v", err)
	}

	if _, err := service.VerifyToken(ctx, res.Token); err != nil {
		t.Fatalf("свежий токен должен проходить verify: %v", err)
	}

	if err := service.Logout(ctx, res.Token); err != nil {
		t.Fatalf("logout вернул ошибку: %v", err)
	}
	if err := service.Logout(ctx, res.Token); err != nil {
		t.Fatalf("повторный logout должен быть идемпотентным: %v", err)
	}

	if _, err := service.VerifyToken(ctx, res.Token); err == nil {
		t.Fatalf("токен после logout не должен проходить verify")
	}
}

func TestAuthService_SessionExpiry(t *testing.T) {
	users := newMockUserStore()
	verifications := newMockVerificationStore()
	service := newTestAuthService(users, verifications)
	ctx := context.Background()

	handle, err := service.StartSignup(ctx, StartSignupInput{
		Email:       "expired@example.com",
		PhoneNumber: "+919876543210",
		FullName:    "Rahul Iyer",
	})
	if err != nil {
		t.Fatalf("start signup вернул ошибку: %v", err)
	}

	stored := verifications.sessions[handle.SessionKey]
	stored.ExpiresAt = time.Now().Add(-time.Minute)

	if _, err := service.VerifySignupOTPs(ctx, handle.SessionKey, stored.EmailCode, stored.PhoneCode); !errors.Is(err, apperror.ErrSessionExpired) {
		t.Fatalf("ожидался ErrSessionExpired, получили %v", err)
	}
}
