package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/upscpath/prep-platform/internal/models"
)

// ErrVerificationSessionNotFound возвращается, когда сессия не найдена по ключу.
var ErrVerificationSessionNotFound = errors.New("verification session not found")

const verificationColumns = `id, session_key, purpose, email, phone, full_name, user_id,
	email_code, phone_code, email_verified, phone_verified, email_attempts, phone_attempts,
	consumed, resend_after, expires_at, created_at`

// VerificationRepository отвечает за таблицу verification_sessions.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository создаёт экземпляр репозитория.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create сохраняет новую сессию верификации.
func (r *VerificationRepository) Create(ctx context.Context, s *models.VerificationSession) error {
	query := `
		INSERT INTO verification_sessions
			(session_key, purpose, email, phone, full_name, user_id, email_code, phone_code, resend_after, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		s.SessionKey, s.Purpose, s.Email, s.Phone, s.FullName, s.UserID,
		s.EmailCode, s.PhoneCode, s.ResendAfter, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt); err != nil {
		return fmt.Errorf("verification repository: create %w", err)
	}
	return nil
}

// GetByKey возвращает сессию по ключу.
func (r *VerificationRepository) GetByKey(ctx context.Context, sessionKey string) (*models.VerificationSession, error) {
	var s models.VerificationSession
	query := `SELECT ` + verificationColumns + ` FROM verification_sessions WHERE session_key = $1`
	if err := r.db.GetContext(ctx, &s, query, sessionKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVerificationSessionNotFound
		}
		return nil, fmt.Errorf("verification repository: get by key %w", err)
	}
	return &s, nil
}

// MarkChannelVerified отмечает канал подтверждённым и возвращает свежие флаги.
func (r *VerificationRepository) MarkChannelVerified(ctx context.Context, sessionKey, channel string) error {
	field := "email_verified"
	if channel == models.VerificationChannelSMS {
		field = "phone_verified"
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE verification_sessions SET `+field+` = TRUE WHERE session_key = $1`, sessionKey)
	if err != nil {
		return fmt.Errorf("verification repository: mark verified %w", err)
	}
	return nil
}

// IncrementAttempts увеличивает счётчик неудачных попыток по каналу.
func (r *VerificationRepository) IncrementAttempts(ctx context.Context, sessionKey, channel string) error {
	field := "email_attempts"
	if channel == models.VerificationChannelSMS {
		field = "phone_attempts"
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE verification_sessions SET `+field+` = `+field+` + 1 WHERE session_key = $1`, sessionKey)
	if err != nil {
		return fmt.Errorf("verification repository: increment attempts %w", err)
	}
	return nil
}

// ResetCodes записывает свежие коды, отодвигает окно и cooldown.
// Коды переотправленного канала сбрасывают статус подтверждения только
// для ещё не подтверждённых каналов: уже пройденная проверка сохраняется.
func (r *VerificationRepository) ResetCodes(ctx context.Context, sessionKey, emailCode, phoneCode string, resendAfter, expiresAt time.Time) error {
	query := `
		UPDATE verification_sessions
		SET email_code = CASE WHEN email_verified THEN email_code ELSE $2 END,
			phone_code = CASE WHEN phone_verified THEN phone_code ELSE $3 END,
			resend_after = $4,
			expires_at = $5
		WHERE session_key = $1
	`
	_, err := r.db.ExecContext(ctx, query, sessionKey, emailCode, phoneCode, resendAfter, expiresAt)
	if err != nil {
		return fmt.Errorf("verification repository: reset codes %w", err)
	}
	return nil
}

// Consume помечает сессию использованной. Возвращает ErrVerificationSessionNotFound,
// если сессия уже была использована — защита от двойного завершения.
func (r *VerificationRepository) Consume(ctx context.Context, sessionKey string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE verification_sessions SET consumed = TRUE WHERE session_key = $1 AND consumed = FALSE`,
		sessionKey)
	if err != nil {
		return fmt.Errorf("verification repository: consume %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVerificationSessionNotFound
	}
	return nil
}

// DeleteExpired удаляет сессии, истекшие раньше отметки. Используется фоновой чисткой.
func (r *VerificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("verification repository: delete expired %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
