package models

import (
	"time"

	"github.com/google/uuid"
)

// Назначение верификационной сессии.
const (
	VerificationPurposeSignup = "signup"
	VerificationPurposeReset  = "reset"
)

// Каналы доставки кодов.
const (
	VerificationChannelEmail = "email"
	VerificationChannelSMS   = "sms"
	VerificationChannelBoth  = "both"
)

// VerificationSession — серверная запись многошаговой проверки email+телефона.
// Клиент держит только SessionKey и ExpiresAt, коды не покидают сервер.
// Сессия одноразовая: Consumed выставляется при завершении регистрации
// или сбросе пароля, после чего любые операции по ключу отклоняются.
type VerificationSession struct {
	ID         uuid.UUID  `db:"id" json:"-"`
	SessionKey string     `db:"session_key" json:"sessionKey"`
	Purpose    string     `db:"purpose" json:"purpose"`
	Email      string     `db:"email" json:"email"`
	Phone      string     `db:"phone" json:"phone"`
	FullName   string     `db:"full_name" json:"-"`
	UserID     *uuid.UUID `db:"user_id" json:"-"`

	EmailCode     string `db:"email_code" json:"-"`
	PhoneCode     string `db:"phone_code" json:"-"`
	EmailVerified bool   `db:"email_verified" json:"emailVerified"`
	PhoneVerified bool   `db:"phone_verified" json:"phoneVerified"`
	EmailAttempts int    `db:"email_attempts" json:"-"`
	PhoneAttempts int    `db:"phone_attempts" json:"-"`

	Consumed    bool      `db:"consumed" json:"consumed"`
	ResendAfter time.Time `db:"resend_after" json:"-"`
	ExpiresAt   time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}

// Expired сообщает, истекло ли окно верификации.
func (s *VerificationSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// FullyVerified сообщает, подтверждены ли оба канала.
func (s *VerificationSession) FullyVerified() bool {
	return s.EmailVerified && s.PhoneVerified
}
