package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/upscpath/prep-platform/internal/models"
	"github.com/upscpath/prep-platform/internal/pkg/apperror"
	"github.com/upscpath/prep-platform/internal/repository"
)

// ExamStore описывает зависимости ExamService от слоя хранилища.
type ExamStore interface {
	ListPublished(ctx context.Context, subject string, limit, offset int) ([]models.Test, error)
	GetTest(ctx context.Context, id uuid.UUID) (*models.Test, error)
	ListQuestions(ctx context.Context, testID uuid.UUID) ([]models.Question, error)
	CreateAttempt(ctx context.Context, attempt *models.Attempt) error
	ListUserAttempts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Attempt, error)
	GetDashboardStats(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error)
	GetPlatformStats(ctx context.Context) (*models.PlatformStats, error)
}

// ExamService отвечает за выдачу тестов, подсчёт попыток и агрегаты дашбордов.
type ExamService struct {
	repo     ExamStore
	cache    *CacheService
	cacheTTL time.Duration
}

// NewExamService создаёт сервис тестов.
func NewExamService(repo ExamStore, cache *CacheService, dashboardTTL time.Duration) *ExamService {
	return &ExamService{
		repo:     repo,
		cache:    cache,
		cacheTTL: dashboardTTL,
	}
}

// ListTests возвращает опубликованные тесты.
func (s *ExamService) ListTests(ctx context.Context, subject string, limit, offset int) ([]models.Test, error) {
	return s.repo.ListPublished(ctx, subject, limit, offset)
}

// TestWithQuestions — тест вместе с вопросами без ключей ответов.
type TestWithQuestions struct {
	Test      *models.Test      `json:"test"`
	Questions []models.Question `json:"questions"`
}

// GetTest возвращает тест с вопросами. Ключи ответов остаются на сервере.
func (s *ExamService) GetTest(ctx context.Context, id uuid.UUID) (*TestWithQuestions, error) {
	test, err := s.repo.GetTest(ctx, id)
	if err != nil {
		if err == repository.ErrTestNotFound {
			return nil, apperror.ErrTestNotFound
		}
		return nil, err
	}

	questions, err := s.repo.ListQuestions(ctx, id)
	if err != nil {
		return nil, err
	}

	return &TestWithQuestions{Test: test, Questions: questions}, nil
}

// SubmitAttemptInput — ответы пользователя: индекс выбранного варианта по
// идентификатору вопроса; отсутствие записи — вопрос пропущен.
type SubmitAttemptInput struct {
	Answers    map[uuid.UUID]int
	TimeTakenS int
}

// SubmitAttempt проверяет ответы и сохраняет попытку. Подсчёт в стиле
// предварительного тура UPSC: за верный ответ полный балл, за неверный —
// отрицательная поправка, пропуски не штрафуются.
func (s *ExamService) SubmitAttempt(ctx context.Context, userID, testID uuid.UUID, in SubmitAttemptInput) (*models.Attempt, error) {
	test, err := s.repo.GetTest(ctx, testID)
	if err != nil {
		if err == repository.ErrTestNotFound {
			return nil, apperror.ErrTestNotFound
		}
		return nil, err
	}

	questions, err := s.repo.ListQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("exam service: тест %s без вопросов", testID)
	}

	var correct, wrong int
	for _, q := range questions {
		chosen, answered := in.Answers[q.ID]
		if !answered || chosen < 0 {
			continue
		}
		if chosen == q.CorrectOption {
			correct++
		} else {
			wrong++
		}
	}

	attempt := &models.Attempt{
		UserID:      userID,
		TestID:      testID,
		Score:       float64(correct)*test.MarksCorrect - float64(wrong)*test.NegativeMarks,
		MaxScore:    float64(len(questions)) * test.MarksCorrect,
		Correct:     correct,
		Wrong:       wrong,
		Unattempted: len(questions) - correct - wrong,
		TimeTakenS:  in.TimeTakenS,
	}

	if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	// Попытка меняет агрегаты — сбрасываем кэш дашборда пользователя.
	if s.cache != nil {
		s.cache.Invalidate(dashboardCacheKey(userID))
	}

	return attempt, nil
}

// ListMyAttempts возвращает попытки пользователя.
func (s *ExamService) ListMyAttempts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Attempt, error) {
	return s.repo.ListUserAttempts(ctx, userID, limit, offset)
}

// Dashboard возвращает агрегаты успеваемости пользователя (с TTL-кэшем).
func (s *ExamService) Dashboard(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error) {
	key := dashboardCacheKey(userID)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			if stats, ok := cached.(*models.DashboardStats); ok {
				return stats, nil
			}
		}
	}

	stats, err := s.repo.GetDashboardStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	if total := stats.TotalCorrect + stats.TotalWrong; total > 0 {
		stats.AccuracyPct = float64(stats.TotalCorrect) * 100 / float64(total)
	}

	if s.cache != nil {
		s.cache.Set(key, stats, s.cacheTTL)
	}

	return stats, nil
}

// PlatformAnalytics возвращает агрегаты по платформе для админ-панели.
func (s *ExamService) PlatformAnalytics(ctx context.Context) (*models.PlatformStats, error) {
	const key = "analytics:platform"
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			if stats, ok := cached.(*models.PlatformStats); ok {
				return stats, nil
			}
		}
	}

	stats, err := s.repo.GetPlatformStats(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(key, stats, s.cacheTTL)
	}

	return stats, nil
}

func dashboardCacheKey(userID uuid.UUID) string {
	return "dashboard:" + userID.String()
}
