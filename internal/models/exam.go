package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lib/pq"
)

// Test описывает пробный тест (мок-экзамен или тематический квиз).
type Test struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Subject       string    `db:"subject" json:"subject"`
	DurationMin   int       `db:"duration_min" json:"durationMin"`
	MarksCorrect  float64   `db:"marks_correct" json:"marksCorrect"`
	NegativeMarks float64   `db:"negative_marks" json:"negativeMarks"`
	IsPublished   bool      `db:"is_published" json:"isPublished"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Question — вопрос теста с четырьмя вариантами ответа.
// CorrectOption не сериализуется наружу: ключи не должны уходить клиенту
// до завершения попытки.
type Question struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	TestID        uuid.UUID      `db:"test_id" json:"testId"`
	Position      int            `db:"position" json:"position"`
	Text          string         `db:"text" json:"text"`
	Options       pq.StringArray `db:"options" json:"options"`
	CorrectOption int            `db:"correct_option" json:"-"`
}

// Attempt — завершённая попытка прохождения теста.
type Attempt struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"userId"`
	TestID      uuid.UUID `db:"test_id" json:"testId"`
	Score       float64   `db:"score" json:"score"`
	MaxScore    float64   `db:"max_score" json:"maxScore"`
	Correct     int       `db:"correct" json:"correct"`
	Wrong       int       `db:"wrong" json:"wrong"`
	Unattempted int       `db:"unattempted" json:"unattempted"`
	TimeTakenS  int       `db:"time_taken_s" json:"timeTakenS"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// DashboardStats — агрегаты успеваемости одного пользователя.
type DashboardStats struct {
	TotalAttempts int     `db:"total_attempts" json:"totalAttempts"`
	AverageScore  float64 `db:"average_score" json:"averageScore"`
	BestScore     float64 `db:"best_score" json:"bestScore"`
	TotalCorrect  int     `db:"total_correct" json:"totalCorrect"`
	TotalWrong    int     `db:"total_wrong" json:"totalWrong"`
	AccuracyPct   float64 `json:"accuracyPct"`
}

// PlatformStats — агрегаты по всей платформе для админ-панели.
type PlatformStats struct {
	TotalUsers     int     `db:"total_users" json:"totalUsers"`
	VerifiedUsers  int     `db:"verified_users" json:"verifiedUsers"`
	TotalTests     int     `db:"total_tests" json:"totalTests"`
	TotalAttempts  int     `db:"total_attempts" json:"totalAttempts"`
	AvgScorePct    float64 `db:"avg_score_pct" json:"avgScorePct"`
	ActiveLastWeek int     `db:"active_last_week" json:"activeLastWeek"`
}
