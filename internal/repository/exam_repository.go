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

// ErrTestNotFound возвращается, когда тест не найден или не опубликован.
var ErrTestNotFound = errors.New("test not found")

// ExamRepository отвечает за таблицы tests, questions и attempts.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository создаёт экземпляр репозитория.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// ListPublished возвращает опубликованные тесты, опционально по предмету.
func (r *ExamRepository) ListPublished(ctx context.Context, subject string, limit, offset int) ([]models.Test, error) {
	var tests []models.Test
	query := `
		SELECT id, title, subject, duration_min, marks_correct, negative_marks, is_published, created_at
		FROM tests
		WHERE is_published = TRUE AND ($1 = '' OR subject = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &tests, query, subject, limit, offset); err != nil {
		return nil, fmt.Errorf("exam repository: list tests %w", err)
	}
	return tests, nil
}

// GetTest возвращает опубликованный тест по идентификатору.
func (r *ExamRepository) GetTest(ctx context.Context, id uuid.UUID) (*models.Test, error) {
	var test models.Test
	query := `
		SELECT id, title, subject, duration_min, marks_correct, negative_marks, is_published, created_at
		FROM tests
		WHERE id = $1 AND is_published = TRUE
	`
	if err := r.db.GetContext(ctx, &test, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("exam repository: get test %w", err)
	}
	return &test, nil
}

// ListQuestions возвращает вопросы теста в порядке позиций.
func (r *ExamRepository) ListQuestions(ctx context.Context, testID uuid.UUID) ([]models.Question, error) {
	var questions []models.Question
	query := `
		SELECT id, test_id, position, text, options, correct_option
		FROM questions
		WHERE test_id = $1
		ORDER BY position
	`
	if err := r.db.SelectContext(ctx, &questions, query, testID); err != nil {
		return nil, fmt.Errorf("exam repository: list questions %w", err)
	}
	return questions, nil
}

// CreateAttempt сохраняет завершённую попытку.
func (r *ExamRepository) CreateAttempt(ctx context.Context, attempt *models.Attempt) error {
	query := `
		INSERT INTO attempts (user_id, test_id, score, max_score, correct, wrong, unattempted, time_taken_s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		attempt.UserID, attempt.TestID, attempt.Score, attempt.MaxScore,
		attempt.Correct, attempt.Wrong, attempt.Unattempted, attempt.TimeTakenS,
	).Scan(&attempt.ID, &attempt.CreatedAt); err != nil {
		return fmt.Errorf("exam repository: create attempt %w", err)
	}
	return nil
}

// ListUserAttempts возвращает попытки пользователя, свежие первыми.
func (r *ExamRepository) ListUserAttempts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Attempt, error) {
	var attempts []models.Attempt
	query := `
		SELECT id, user_id, test_id, score, max_score, correct, wrong, unattempted, time_taken_s, created_at
		FROM attempts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &attempts, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("exam repository: list attempts %w", err)
	}
	return attempts, nil
}

// GetDashboardStats считает агрегаты успеваемости пользователя.
func (r *ExamRepository) GetDashboardStats(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	query := `
		SELECT
			COUNT(*) AS total_attempts,
			COALESCE(AVG(score), 0) AS average_score,
			COALESCE(MAX(score), 0) AS best_score,
			COALESCE(SUM(correct), 0) AS total_correct,
			COALESCE(SUM(wrong), 0) AS total_wrong
		FROM attempts
		WHERE user_id = $1
	`
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("exam repository: dashboard stats %w", err)
	}
	return &stats, nil
}

// GetPlatformStats считает агрегаты по всей платформе для админ-панели.
func (r *ExamRepository) GetPlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	var stats models.PlatformStats
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM users WHERE email_verified AND phone_verified) AS verified_users,
			(SELECT COUNT(*) FROM tests WHERE is_published) AS total_tests,
			(SELECT COUNT(*) FROM attempts) AS total_attempts,
			COALESCE((SELECT AVG(score * 100.0 / NULLIF(max_score, 0)) FROM attempts), 0) AS avg_score_pct,
			(SELECT COUNT(DISTINCT user_id) FROM attempts WHERE created_at > NOW() - INTERVAL '7 days') AS active_last_week
	`
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("exam repository: platform stats %w", err)
	}
	return &stats, nil
}
