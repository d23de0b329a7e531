package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/upscpath/prep-platform/internal/dto"
	"github.com/upscpath/prep-platform/internal/http/handlers/common"
	"github.com/upscpath/prep-platform/internal/repository"
	"github.com/upscpath/prep-platform/internal/storage"
	"github.com/upscpath/prep-platform/internal/validation"
)

// ProfileHandler предоставляет HTTP слой для профиля пользователя.
type ProfileHandler struct {
	users   *repository.UserRepository
	avatars *storage.AvatarStorage
}

// NewProfileHandler создаёт хэндлер.
func NewProfileHandler(users *repository.UserRepository, avatars *storage.AvatarStorage) *ProfileHandler {
	return &ProfileHandler{users: users, avatars: avatars}
}

// GetProfile обрабатывает GET /profile.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile обрабатывает PUT /profile.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.UpdateProfileRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateFullName(req.FirstName); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.users.UpdateProfile(c.Request.Context(), userID, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)); err != nil {
		respondServiceError(c, err)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UploadAvatar обрабатывает POST /profile/avatar.
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "поле file обязательно")
		return
	}

	if file.Size == 0 {
		common.RespondBadRequest(c, "файл не может быть пустым")
		return
	}

	src, err := file.Open()
	if err != nil {
		common.RespondInternalError(c, "")
		return
	}
	defer src.Close()

	// Сверку содержимого с расширением и лимит размера делает хранилище.
	relativePath, _, err := h.avatars.Save(c.Request.Context(), userID, file.Filename, src)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	avatarPath := filepath.ToSlash(relativePath)
	if err := h.users.UpdateAvatarPath(c.Request.Context(), userID, avatarPath); err != nil {
		// Файл уже на диске, но профиль не обновился — убираем осиротевший файл.
		_ = h.avatars.Delete(c.Request.Context(), relativePath)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"avatarPath": avatarPath})
}
