package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/upscpath/prep-platform/internal/goroutine"
	"github.com/upscpath/prep-platform/internal/logger"
	"github.com/upscpath/prep-platform/internal/models"
	"github.com/upscpath/prep-platform/internal/pkg/apperror"
	"github.com/upscpath/prep-platform/internal/repository"
	"github.com/upscpath/prep-platform/internal/validation"
)

// UserStore описывает зависимости AuthService от пользовательского хранилища.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error
	CreateAuthSession(ctx context.Context, session *models.AuthSession) error
	GetAuthSession(ctx context.Context, sessionID uuid.UUID) (*models.AuthSession, error)
	DeleteAuthSession(ctx context.Context, sessionID uuid.UUID) error
	DeleteUserAuthSessions(ctx context.Context, userID uuid.UUID) error
}

// VerificationStore описывает зависимости от хранилища сессий верификации.
type VerificationStore interface {
	Create(ctx context.Context, s *models.VerificationSession) error
	GetByKey(ctx context.Context, sessionKey string) (*models.VerificationSession, error)
	MarkChannelVerified(ctx context.Context, sessionKey, channel string) error
	IncrementAttempts(ctx context.Context, sessionKey, channel string) error
	ResetCodes(ctx context.Context, sessionKey, emailCode, phoneCode string, resendAfter, expiresAt time.Time) error
	Consume(ctx context.Context, sessionKey string) error
}

// StatusNotifier получает уведомления об изменении статуса сессии верификации
// (подписчики по WebSocket). Реализация не должна блокировать.
type StatusNotifier interface {
	PublishStatus(sessionKey string, status *SessionStatus)
}

// FlowTimings — настройки окна и cooldown для одного назначения сессии.
type FlowTimings struct {
	OTPTTL         time.Duration
	ResendCooldown time.Duration
}

// AuthService инкапсулирует серверную часть трёх потоков аутентификации:
// регистрация с двухканальной OTP-верификацией, вход по паролю и сброс пароля.
type AuthService struct {
	users         UserStore
	verifications VerificationStore
	tokens        *TokenManager
	email         EmailSender
	sms           SMSSender
	notifier      StatusNotifier

	signupTimings FlowTimings
	resetTimings  FlowTimings
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(
	users UserStore,
	verifications VerificationStore,
	tokens *TokenManager,
	email EmailSender,
	sms SMSSender,
	signupTimings, resetTimings FlowTimings,
) *AuthService {
	return &AuthService{
		users:         users,
		verifications: verifications,
		tokens:        tokens,
		email:         email,
		sms:           sms,
		signupTimings: signupTimings,
		resetTimings:  resetTimings,
	}
}

// SetStatusNotifier подключает публикацию статусов для WebSocket-подписчиков.
func (s *AuthService) SetStatusNotifier(n StatusNotifier) {
	s.notifier = n
}

// StartSignupInput — данные первого шага регистрации.
type StartSignupInput struct {
	Email       string
	PhoneNumber string
	FullName    string
}

// SessionHandle — то, что клиент получает после создания сессии верификации.
type SessionHandle struct {
	SessionKey string    `json:"sessionKey"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// SessionStatus — текущее состояние сессии верификации.
type SessionStatus struct {
	EmailVerified bool      `json:"emailVerified"`
	PhoneVerified bool      `json:"phoneVerified"`
	Consumed      bool      `json:"consumed"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// AuthResult возвращает итог успешной аутентификации.
type AuthResult struct {
	User  *models.User
	Token string
}

// StartSignup создаёт сессию верификации для регистрации и отправляет коды
// на оба канала. Телефон принимается уже в полном формате (+<код><номер>).
func (s *AuthService) StartSignup(ctx context.Context, in StartSignupInput) (*SessionHandle, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePhoneE164(in.PhoneNumber); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateFullName(in.FullName); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperror.ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByPhone(ctx, in.PhoneNumber); err == nil {
		return nil, apperror.ErrPhoneTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	now := time.Now()
	session := &models.VerificationSession{
		SessionKey:  uuid.NewString(),
		Purpose:     models.VerificationPurposeSignup,
		Email:       email,
		Phone:       in.PhoneNumber,
		FullName:    strings.TrimSpace(in.FullName),
		EmailCode:   generateOTP(),
		PhoneCode:   generateOTP(),
		ResendAfter: now.Add(s.signupTimings.ResendCooldown),
		ExpiresAt:   now.Add(s.signupTimings.OTPTTL),
	}

	if err := s.verifications.Create(ctx, session); err != nil {
		return nil, err
	}

	s.dispatchCodes(session, models.VerificationChannelBoth)

	return &SessionHandle{SessionKey: session.SessionKey, ExpiresAt: session.ExpiresAt}, nil
}

// VerifySignupOTPs проверяет коды по обоим каналам. Частичное подтверждение
// допускается: пустой код по уже подтверждённому каналу пропускается,
// неверный код одного канала не отменяет успех другого.
func (s *AuthService) VerifySignupOTPs(ctx context.Context, sessionKey, emailOTP, phoneOTP string) (*SessionStatus, error) {
	session, err := s.activeSession(ctx, sessionKey, models.VerificationPurposeSignup)
	if err != nil {
		return nil, err
	}

	var firstErr error

	if !session.EmailVerified {
		if verifyErr := s.verifyChannel(ctx, session, models.VerificationChannelEmail, emailOTP); verifyErr != nil {
			firstErr = verifyErr
		} else {
			session.EmailVerified = true
		}
	}

	if !session.PhoneVerified {
		if verifyErr := s.verifyChannel(ctx, session, models.VerificationChannelSMS, phoneOTP); verifyErr != nil {
			if firstErr == nil {
				firstErr = verifyErr
			}
		} else {
			session.PhoneVerified = true
		}
	}

	status := s.statusOf(session)
	s.publishStatus(session.SessionKey, status)

	// Частичный успех — не ошибка: если хотя бы один канал подтверждён,
	// клиент получает статус и остаётся на шаге до полной верификации.
	if firstErr != nil && !session.EmailVerified && !session.PhoneVerified {
		return status, firstErr
	}

	return status, nil
}

// CompleteSignup завершает регистрацию: проверяет полноту верификации,
// политику пароля, создаёт пользователя и выдаёт токен. Сессия одноразовая.
func (s *AuthService) CompleteSignup(ctx context.Context, sessionKey, password, firstName, lastName string, meta map[string]string) (*AuthResult, error) {
	session, err := s.activeSession(ctx, sessionKey, models.VerificationPurposeSignup)
	if err != nil {
		return nil, err
	}

	if !session.FullyVerified() {
		return nil, apperror.ErrNotFullyVerified
	}

	if err := validation.ValidatePassword(password); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" {
		firstName, lastName = validation.SplitFullName(session.FullName)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	// Consume до создания пользователя: повторный запрос с тем же ключом
	// не должен породить второй аккаунт.
	if err := s.verifications.Consume(ctx, sessionKey); err != nil {
		return nil, apperror.ErrSessionConsumed
	}

	user := &models.User{
		Email:         session.Email,
		Phone:         session.Phone,
		FirstName:     firstName,
		LastName:      lastName,
		PasswordHash:  string(passHash),
		Role:          models.RoleStudent,
		EmailVerified: true,
		PhoneVerified: true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publishStatus(sessionKey, &SessionStatus{
		EmailVerified: true, PhoneVerified: true, Consumed: true, ExpiresAt: session.ExpiresAt,
	})

	return s.issueToken(ctx, user, meta)
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Identifier string
	Password   string
}

// Login проверяет учётные данные и выдаёт токен. Идентификатор — email или
// телефон; клиент передаёт его как есть, сервер пробует оба варианта.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.ValidateIdentifier(in.Identifier); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	user, err := s.findByIdentifier(ctx, in.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "аккаунт заблокирован")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLoginAt(ctx, user.ID); err != nil {
		// Не прерываем вход из-за вспомогательного апдейта.
		logger.WithComponent("auth").WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("не удалось обновить last_login_at")
	}

	return s.issueToken(ctx, user, meta)
}

// StartReset создаёт сессию сброса пароля и отправляет коды на оба канала
// аккаунта. Идентификатор — email или телефон.
func (s *AuthService) StartReset(ctx context.Context, identifier string) (*SessionHandle, error) {
	if err := validation.ValidateIdentifier(identifier); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "аккаунт с таким идентификатором не найден")
		}
		return nil, err
	}

	now := time.Now()
	userID := user.ID
	session := &models.VerificationSession{
		SessionKey:  uuid.NewString(),
		Purpose:     models.VerificationPurposeReset,
		Email:       user.Email,
		Phone:       user.Phone,
		UserID:      &userID,
		EmailCode:   generateOTP(),
		PhoneCode:   generateOTP(),
		ResendAfter: now.Add(s.resetTimings.ResendCooldown),
		ExpiresAt:   now.Add(s.resetTimings.OTPTTL),
	}

	if err := s.verifications.Create(ctx, session); err != nil {
		return nil, err
	}

	s.dispatchCodes(session, models.VerificationChannelBoth)

	return &SessionHandle{SessionKey: session.SessionKey, ExpiresAt: session.ExpiresAt}, nil
}

// ResetPassword выполняет комбинированную проверку кодов и смену пароля.
// В отличие от регистрации частичное подтверждение не поддерживается:
// оба кода обязательны в одном запросе.
func (s *AuthService) ResetPassword(ctx context.Context, sessionKey, emailOTP, phoneOTP, newPassword string) error {
	session, err := s.activeSession(ctx, sessionKey, models.VerificationPurposeReset)
	if err != nil {
		return err
	}

	if err := validation.ValidateOTP(emailOTP); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "код из email: "+err.Error())
	}
	if err := validation.ValidateOTP(phoneOTP); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "код из SMS: "+err.Error())
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	if session.EmailCode != emailOTP || session.PhoneCode != phoneOTP {
		_ = s.verifications.IncrementAttempts(ctx, sessionKey, models.VerificationChannelEmail)
		return apperror.New(apperror.ErrCodeBadRequest, "неверный код подтверждения")
	}

	if session.UserID == nil {
		return apperror.ErrSessionNotFound
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	if err := s.verifications.Consume(ctx, sessionKey); err != nil {
		return apperror.ErrSessionConsumed
	}

	if err := s.users.UpdatePasswordHash(ctx, *session.UserID, string(passHash)); err != nil {
		return err
	}

	// Смена пароля отзывает все выданные токены.
	if err := s.users.DeleteUserAuthSessions(ctx, *session.UserID); err != nil {
		return err
	}

	s.publishStatus(sessionKey, &SessionStatus{
		EmailVerified: true, PhoneVerified: true, Consumed: true, ExpiresAt: session.ExpiresAt,
	})

	return nil
}

// Resend перегенерирует коды и отправляет их повторно. Cooldown зависит от
// назначения сессии; до его истечения возвращается ErrResendTooSoon.
// Окно жизни сессии отодвигается на полный интервал.
func (s *AuthService) Resend(ctx context.Context, sessionKey, channel string) (*SessionHandle, error) {
	switch channel {
	case models.VerificationChannelEmail, models.VerificationChannelSMS, models.VerificationChannelBoth:
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "тип канала должен быть email, sms или both")
	}

	session, err := s.activeSession(ctx, sessionKey, "")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if now.Before(session.ResendAfter) {
		return nil, apperror.ErrResendTooSoon
	}

	timings := s.signupTimings
	if session.Purpose == models.VerificationPurposeReset {
		timings = s.resetTimings
	}

	emailCode := session.EmailCode
	phoneCode := session.PhoneCode
	if !session.EmailVerified && (channel == models.VerificationChannelEmail || channel == models.VerificationChannelBoth) {
		emailCode = generateOTP()
	}
	if !session.PhoneVerified && (channel == models.VerificationChannelSMS || channel == models.VerificationChannelBoth) {
		phoneCode = generateOTP()
	}

	resendAfter := now.Add(timings.ResendCooldown)
	expiresAt := now.Add(timings.OTPTTL)

	if err := s.verifications.ResetCodes(ctx, sessionKey, emailCode, phoneCode, resendAfter, expiresAt); err != nil {
		return nil, err
	}

	session.EmailCode = emailCode
	session.PhoneCode = phoneCode
	s.dispatchCodes(session, channel)

	return &SessionHandle{SessionKey: sessionKey, ExpiresAt: expiresAt}, nil
}

// SessionStatus возвращает текущее состояние сессии верификации.
func (s *AuthService) SessionStatus(ctx context.Context, sessionKey string) (*SessionStatus, error) {
	session, err := s.verifications.GetByKey(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationSessionNotFound) {
			return nil, apperror.ErrSessionNotFound
		}
		return nil, err
	}
	return s.statusOf(session), nil
}

// VerifyToken проверяет bearer-токен вместе с его auth-сессией и возвращает
// актуальный профиль пользователя.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	if _, err := s.users.GetAuthSession(ctx, claims.SessionID); err != nil {
		return nil, apperror.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	return user, nil
}

// Logout отзывает auth-сессию токена. Идемпотентен.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		// Невалидный токен отзывать нечего.
		return nil
	}
	return s.users.DeleteAuthSession(ctx, claims.SessionID)
}

// activeSession достаёт сессию и проверяет назначение, срок и одноразовость.
func (s *AuthService) activeSession(ctx context.Context, sessionKey, purpose string) (*models.VerificationSession, error) {
	session, err := s.verifications.GetByKey(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationSessionNotFound) {
			return nil, apperror.ErrSessionNotFound
		}
		return nil, err
	}

	if purpose != "" && session.Purpose != purpose {
		return nil, apperror.ErrSessionNotFound
	}
	if session.Consumed {
		return nil, apperror.ErrSessionConsumed
	}
	if session.Expired(time.Now()) {
		return nil, apperror.ErrSessionExpired
	}

	return session, nil
}

// verifyChannel сверяет код одного канала и фиксирует результат.
func (s *AuthService) verifyChannel(ctx context.Context, session *models.VerificationSession, channel, code string) error {
	if err := validation.ValidateOTP(code); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	expected := session.EmailCode
	if channel == models.VerificationChannelSMS {
		expected = session.PhoneCode
	}

	if code != expected {
		_ = s.verifications.IncrementAttempts(ctx, session.SessionKey, channel)
		return apperror.New(apperror.ErrCodeBadRequest, "неверный код подтверждения")
	}

	return s.verifications.MarkChannelVerified(ctx, session.SessionKey, channel)
}

func (s *AuthService) findByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if validation.DetectIdentifierKind(identifier) == validation.IdentifierEmail {
		if user, err := s.users.GetByEmail(ctx, strings.ToLower(identifier)); err == nil {
			return user, nil
		}
		return s.users.GetByPhone(ctx, identifier)
	}
	if user, err := s.users.GetByPhone(ctx, validation.NormalizePhoneDigits(identifier)); err == nil {
		return user, nil
	}
	return s.users.GetByEmail(ctx, strings.ToLower(identifier))
}

func (s *AuthService) issueToken(ctx context.Context, user *models.User, meta map[string]string) (*AuthResult, error) {
	sessionID := uuid.New()
	token, exp, err := s.tokens.Issue(user, sessionID)
	if err != nil {
		return nil, err
	}

	session := &models.AuthSession{
		ID:        sessionID,
		UserID:    user.ID,
		ExpiresAt: exp,
	}
	if meta != nil {
		if ua, ok := meta["user_agent"]; ok && ua != "" {
			session.UserAgent = &ua
		}
		if ip, ok := meta["ip"]; ok && ip != "" {
			session.IPAddress = &ip
		}
	}

	if err := s.users.CreateAuthSession(ctx, session); err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Token: token}, nil
}

// dispatchCodes отправляет коды best-effort в фоне: доставка не должна
// блокировать HTTP-запрос, ошибки уходят в лог.
func (s *AuthService) dispatchCodes(session *models.VerificationSession, channel string) {
	email, phone := session.Email, session.Phone
	emailCode, phoneCode := session.EmailCode, session.PhoneCode
	emailSender, smsSender := s.email, s.sms

	goroutine.SafeGoWithContext(context.Background(), func(ctx context.Context) {
		if emailSender != nil && !session.EmailVerified &&
			(channel == models.VerificationChannelEmail || channel == models.VerificationChannelBoth) {
			if err := emailSender.SendOTP(ctx, email, emailCode); err != nil {
				logger.WithComponent("auth").WithError(err).Warn("не удалось отправить email с кодом")
			}
		}
		if smsSender != nil && !session.PhoneVerified &&
			(channel == models.VerificationChannelSMS || channel == models.VerificationChannelBoth) {
			if err := smsSender.SendOTP(ctx, phone, phoneCode); err != nil {
				logger.WithComponent("auth").WithError(err).Warn("не удалось отправить SMS с кодом")
			}
		}
	})
}

func (s *AuthService) statusOf(session *models.VerificationSession) *SessionStatus {
	return &SessionStatus{
		EmailVerified: session.EmailVerified,
		PhoneVerified: session.PhoneVerified,
		Consumed:      session.Consumed,
		ExpiresAt:     session.ExpiresAt,
	}
}

func (s *AuthService) publishStatus(sessionKey string, status *SessionStatus) {
	if s.notifier != nil && status != nil {
		s.notifier.PublishStatus(sessionKey, status)
	}
}

// generateOTP выдаёт криптослучайный шестизначный код.
func generateOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand в норме не ошибается; фиксированный код не выдаём.
		panic(fmt.Sprintf("auth service: crypto/rand недоступен: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}
