package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/upscpath/prep-platform/internal/models"
)

// ErrUserNotFound возвращается, когда запись пользователя не найдена.
var ErrUserNotFound = errors.New("user not found")

// ErrAuthSessionNotFound возвращается, когда auth-сессия не найдена или отозвана.
var ErrAuthSessionNotFound = errors.New("auth session not found")

const userColumns = `id, email, phone, first_name, last_name, password_hash, role,
	email_verified, phone_verified, avatar_path, is_active, last_login_at, created_at, updated_at`

// UserRepository отвечает за таблицы users и auth_sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, phone, first_name, last_name, password_hash, role, email_verified, phone_verified, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Email, user.Phone, user.FirstName, user.LastName,
		user.PasswordHash, user.Role, user.EmailVerified, user.PhoneVerified,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getByField(ctx, "email", email)
}

// GetByPhone возвращает пользователя по номеру телефона.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.getByField(ctx, "phone", phone)
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getByField(ctx, "id", id)
}

func (r *UserRepository) getByField(ctx context.Context, field string, value interface{}) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + field + ` = $1`
	if err := r.db.GetContext(ctx, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by %s %w", field, err)
	}
	return &user, nil
}

// UpdatePasswordHash обновляет хэш пароля пользователя.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, userID)
	if err != nil {
		return fmt.Errorf("user repository: update password %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateProfile обновляет имя и фамилию пользователя.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, firstName, lastName string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET first_name = $1, last_name = $2, updated_at = NOW() WHERE id = $3`,
		firstName, lastName, userID)
	if err != nil {
		return fmt.Errorf("user repository: update profile %w", err)
	}
	return nil
}

// UpdateAvatarPath сохраняет относительный путь аватара.
func (r *UserRepository) UpdateAvatarPath(ctx context.Context, userID uuid.UUID, path string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar_path = $1, updated_at = NOW() WHERE id = $2`, path, userID)
	if err != nil {
		return fmt.Errorf("user repository: update avatar %w", err)
	}
	return nil
}

// UpdateLastLoginAt отмечает время последнего входа.
func (r *UserRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("user repository: update last_login_at %w", err)
	}
	return nil
}

// CreateAuthSession сохраняет выданный токен.
func (r *UserRepository) CreateAuthSession(ctx context.Context, session *models.AuthSession) error {
	query := `
		INSERT INTO auth_sessions (id, user_id, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		session.ID, session.UserID, session.UserAgent, session.IPAddress, session.ExpiresAt,
	).Scan(&session.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create auth session %w", err)
	}
	return nil
}

// GetAuthSession возвращает активную auth-сессию по идентификатору.
func (r *UserRepository) GetAuthSession(ctx context.Context, sessionID uuid.UUID) (*models.AuthSession, error) {
	var session models.AuthSession
	query := `
		SELECT id, user_id, user_agent, ip_address, expires_at, created_at
		FROM auth_sessions
		WHERE id = $1 AND expires_at > NOW()
	`
	if err := r.db.GetContext(ctx, &session, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuthSessionNotFound
		}
		return nil, fmt.Errorf("user repository: get auth session %w", err)
	}
	return &session, nil
}

// DeleteAuthSession отзывает токен. Идемпотентна.
func (r *UserRepository) DeleteAuthSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("user repository: delete auth session %w", err)
	}
	return nil
}

// DeleteUserAuthSessions отзывает все токены пользователя (после смены пароля).
func (r *UserRepository) DeleteUserAuthSessions(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("user repository: delete user auth sessions %w", err)
	}
	return nil
}
