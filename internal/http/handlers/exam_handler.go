package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/upscpath/prep-platform/internal/dto"
	"github.com/upscpath/prep-platform/internal/http/handlers/common"
	"github.com/upscpath/prep-platform/internal/service"
)

// ExamHandler предоставляет HTTP слой для тестов, попыток и дашбордов.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler создаёт хэндлер.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// ListTests обрабатывает GET /tests.
func (h *ExamHandler) ListTests(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	subject := c.Query("subject")

	tests, err := h.exams.ListTests(c.Request.Context(), subject, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tests": tests})
}

// GetTest обрабатывает GET /tests/:id. Вопросы уходят без ключей ответов.
func (h *ExamHandler) GetTest(c *gin.Context) {
	testID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	test, err := h.exams.GetTest(c.Request.Context(), testID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

// SubmitAttempt обрабатывает POST /tests/:id/attempts.
func (h *ExamHandler) SubmitAttempt(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	testID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SubmitAttemptRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	answers := make(map[uuid.UUID]int, len(req.Answers))
	for rawID, option := range req.Answers {
		questionID, parseErr := uuid.Parse(rawID)
		if parseErr != nil {
			common.RespondBadRequest(c, "невалидный идентификатор вопроса: "+rawID)
			return
		}
		answers[questionID] = option
	}

	attempt, err := h.exams.SubmitAttempt(c.Request.Context(), userID, testID, service.SubmitAttemptInput{
		Answers:    answers,
		TimeTakenS: req.TimeTakenS,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// ListMyAttempts обрабатывает GET /attempts/my.
func (h *ExamHandler) ListMyAttempts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)

	attempts, err := h.exams.ListMyAttempts(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

// Dashboard обрабатывает GET /dashboard.
func (h *ExamHandler) Dashboard(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	stats, err := h.exams.Dashboard(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// PlatformAnalytics обрабатывает GET /admin/analytics.
func (h *ExamHandler) PlatformAnalytics(c *gin.Context) {
	stats, err := h.exams.PlatformAnalytics(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
