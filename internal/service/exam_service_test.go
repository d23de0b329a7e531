package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/upscpath/prep-platform/internal/models"
	"github.com/upscpath/prep-platform/internal/repository"
)

// mockExamStore реализует ExamStore для тестов.
type mockExamStore struct {
	tests          map[uuid.UUID]*models.Test
	questions      map[uuid.UUID][]models.Question
	attempts       []models.Attempt
	dashboardCalls int
}

func newMockExamStore() *mockExamStore {
	return &mockExamStore{
		tests:     make(map[uuid.UUID]*models.Test),
		questions: make(map[uuid.UUID][]models.Question),
	}
}

func (m *mockExamStore) ListPublished(ctx context.Context, subject string, limit, offset int) ([]models.Test, error) {
	var out []models.Test
	for _, t := range m.tests {
		if subject == "" || t.Subject == subject {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockExamStore) GetTest(ctx context.Context, id uuid.UUID) (*models.Test, error) {
	if t, ok := m.tests[id]; ok {
		return t, nil
	}
	return nil, repository.ErrTestNotFound
}

func (m *mockExamStore) ListQuestions(ctx context.Context, testID uuid.UUID) ([]models.Question, error) {
	return m.questions[testID], nil
}

func (m *mockExamStore) CreateAttempt(ctx context.Context, attempt *models.Attempt) error {
	attempt.ID = uuid.New()
	attempt.CreatedAt = time.Now()
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *mockExamStore) ListUserAttempts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Attempt, error) {
	var out []models.Attempt
	for _, a := range m.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockExamStore) GetDashboardStats(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error) {
	m.dashboardCalls++
	stats := &models.DashboardStats{}
	for _, a := range m.attempts {
		if a.UserID != userID {
			continue
		}
		stats.TotalAttempts++
		stats.TotalCorrect += a.Correct
		stats.TotalWrong += a.Wrong
		if a.Score > stats.BestScore {
			stats.BestScore = a.Score
		}
	}
	return stats, nil
}

func (m *mockExamStore) GetPlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	return &models.PlatformStats{TotalAttempts: len(m.attempts)}, nil
}

func seedTest(store *mockExamStore) uuid.UUID {
	testID := uuid.New()
	store.tests[testID] = &models.Test{
		ID:            testID,
		Title:         "Polity Mock",
		Subject:       "polity",
		MarksCorrect:  2.0,
		NegativeMarks: 0.66,
		IsPublished:   true,
	}

	questions := make([]models.Question, 0, 4)
	for i := 0; i < 4; i++ {
		questions = append(questions, models.Question{
			ID:            uuid.New(),
			TestID:        testID,
			Position:      i + 1,
			Text:          "question",
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: i % 4,
		})
	}
	store.questions[testID] = questions
	return testID
}

func TestExamService_NegativeMarking(t *testing.T) {
	store := newMockExamStore()
	service := NewExamService(store, NewCacheService(), time.Minute)
	ctx := context.Background()

	testID := seedTest(store)
	questions := store.questions[testID]
	userID := uuid.New()

	// Два верных, один неверный, один пропуск.
	answers := map[uuid.UUID]int{
		questions[0].ID: questions[0].CorrectOption,
		questions[1].ID: questions[1].CorrectOption,
		questions[2].ID: (questions[2].CorrectOption + 1) % 4,
	}

	attempt, err := service.SubmitAttempt(ctx, userID, testID, SubmitAttemptInput{Answers: answers, TimeTakenS: 300})
	if err != nil {
		t.Fatalf("submit вернул ошибку: %v", err)
	}

	wantScore := 2*2.0 - 1*0.66
	if attempt.Score != wantScore {
		t.Fatalf("ожидался счёт %.2f, получили %.2f", wantScore, attempt.Score)
	}
	if attempt.MaxScore != 8.0 {
		t.Fatalf("ожидался максимум 8.0, получили %.2f", attempt.MaxScore)
	}
	if attempt.Correct != 2 || attempt.Wrong != 1 || attempt.Unattempted != 1 {
		t.Fatalf("неверная разбивка попытки: %+v", attempt)
	}
}

func TestExamService_DashboardCache(t *testing.T) {
	store := newMockExamStore()
	service := NewExamService(store, NewCacheService(), time.Minute)
	ctx := context.Background()

	testID := seedTest(store)
	questions := store.questions[testID]
	userID := uuid.New()

	if _, err := service.SubmitAttempt(ctx, userID, testID, SubmitAttemptInput{
		Answers: map[uuid.UUID]int{questions[0].ID: questions[0].CorrectOption},
	}); err != nil {
		t.Fatalf("submit вернул ошибку: %v", err)
	}

	if _, err := service.Dashboard(ctx, userID); err != nil {
		t.Fatalf("dashboard вернул ошибку: %v", err)
	}
	if _, err := service.Dashboard(ctx, userID); err != nil {
		t.Fatalf("dashboard вернул ошибку: %v", err)
	}
	if store.dashboardCalls != 1 {
		t.Fatalf("повторный запрос должен идти из кэша, обращений к базе: %d", store.dashboardCalls)
	}

	// Новая попытка инвалидирует кэш пользователя.
	if _, err := service.SubmitAttempt(ctx, userID, testID, SubmitAttemptInput{
		Answers: map[uuid.UUID]int{questions[1].ID: questions[1].CorrectOption},
	}); err != nil {
		t.Fatalf("submit вернул ошибку: %v", err)
	}
	if _, err := service.Dashboard(ctx, userID); err != nil {
		t.Fatalf("dashboard вернул ошибку: %v", err)
	}
	if store.dashboardCalls != 2 {
		t.Fatalf("после новой попытки агрегаты должны пересчитаться, обращений: %d", store.dashboardCalls)
	}
}

func TestExamService_AccuracyPct(t *testing.T) {
	store := newMockExamStore()
	service := NewExamService(store, nil, time.Minute)
	ctx := context.Background()

	userID := uuid.New()
	store.attempts = append(store.attempts, models.Attempt{
		UserID:  userID,
		Correct: 3,
		Wrong:   1,
	})

	stats, err := service.Dashboard(ctx, userID)
	if err != nil {
		t.Fatalf("dashboard вернул ошибку: %v", err)
	}
	if stats.AccuracyPct != 75.0 {
		t.Fatalf("ожидалась точность 75%%, получили %.1f", stats.AccuracyPct)
	}
}

func TestExamService_UnpublishedTest(t *testing.T) {
	store := newMockExamStore()
	service := NewExamService(store, nil, time.Minute)
	ctx := context.Background()

	if _, err := service.GetTest(ctx, uuid.New()); err == nil {
		t.Fatalf("неизвестный тест должен вернуть ошибку")
	}
}
