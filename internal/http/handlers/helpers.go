package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/upscpath/prep-platform/internal/http/handlers/common"
	"github.com/upscpath/prep-platform/internal/pkg/apperror"
)

// respondServiceError переводит ошибку сервиса в HTTP ответ: типизированные
// ошибки получают свой статус и сообщение, остальные маскируются как 500.
func respondServiceError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		common.RespondError(c, appErr.HTTPStatus, appErr.Message)
		return
	}
	common.RespondInternalError(c, "")
}

// requestMeta собирает метаданные запроса для auth-сессии.
func requestMeta(c *gin.Context) map[string]string {
	return map[string]string{
		"user_agent": c.GetHeader("User-Agent"),
		"ip":         c.ClientIP(),
	}
}
