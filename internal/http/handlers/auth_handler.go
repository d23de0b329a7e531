package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/upscpath/prep-platform/internal/dto"
	"github.com/upscpath/prep-platform/internal/http/handlers/common"
	"github.com/upscpath/prep-platform/internal/models"
	"github.com/upscpath/prep-platform/internal/service"
)

// AuthHandler предоставляет HTTP слой для регистрации, входа и сброса пароля.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// SendSignupOTP обрабатывает POST /auth/signup/send-otp.
func (h *AuthHandler) SendSignupOTP(c *gin.Context) {
	var req dto.SignupSendOTPRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	handle, err := h.auth.StartSignup(c.Request.Context(), service.StartSignupInput{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		FullName:    req.FullName,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SessionResponse{
		SessionKey: handle.SessionKey,
		ExpiresAt:  handle.ExpiresAt,
	})
}

// VerifySignupOTP обрабатывает POST /auth/signup/verify-otp.
// Частичное подтверждение — валидный исход: клиент получает статус каналов
// и остаётся на шаге до полной верификации.
func (h *AuthHandler) VerifySignupOTP(c *gin.Context) {
	var req dto.SignupVerifyOTPRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	status, err := h.auth.VerifySignupOTPs(c.Request.Context(), req.SessionKey, req.EmailOTP, req.PhoneOTP)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SessionStatusResponse{
		EmailVerified: status.EmailVerified,
		PhoneVerified: status.PhoneVerified,
		Consumed:      status.Consumed,
		ExpiresAt:     status.ExpiresAt,
	})
}

// CompleteSignup обрабатывает POST /auth/signup/complete.
func (h *AuthHandler) CompleteSignup(c *gin.Context) {
	var req dto.SignupCompleteRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.auth.CompleteSignup(c.Request.Context(), req.SessionKey, req.Password, req.FirstName, req.LastName, requestMeta(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.AuthResponse{Token: result.Token, User: result.User})
}

// Login обрабатывает POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
	}, requestMeta(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthResponse{Token: result.Token, User: result.User})
}

// ForgotPassword обрабатывает POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	handle, err := h.auth.StartReset(c.Request.Context(), req.Identifier)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SessionResponse{
		SessionKey: handle.SessionKey,
		ExpiresAt:  handle.ExpiresAt,
	})
}

// ResetPassword обрабатывает POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.SessionKey, req.EmailOTP, req.PhoneOTP, req.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "пароль успешно изменён", nil)
}

// ResendOTP обрабатывает POST /auth/resend-otp.
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req dto.ResendOTPRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if req.Type != models.VerificationChannelEmail &&
		req.Type != models.VerificationChannelSMS &&
		req.Type != models.VerificationChannelBoth {
		common.RespondBadRequest(c, "type должен быть email, sms или both")
		return
	}

	handle, err := h.auth.Resend(c.Request.Context(), req.SessionKey, req.Type)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SessionResponse{
		SessionKey: handle.SessionKey,
		ExpiresAt:  handle.ExpiresAt,
	})
}

// SessionStatus обрабатывает GET /auth/session/:sessionKey/status.
func (h *AuthHandler) SessionStatus(c *gin.Context) {
	sessionKey := c.Param("sessionKey")
	if sessionKey == "" {
		common.RespondBadRequest(c, "параметр sessionKey обязателен")
		return
	}

	status, err := h.auth.SessionStatus(c.Request.Context(), sessionKey)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SessionStatusResponse{
		EmailVerified: status.EmailVerified,
		PhoneVerified: status.PhoneVerified,
		Consumed:      status.Consumed,
		ExpiresAt:     status.ExpiresAt,
	})
}

// VerifyToken обрабатывает GET /auth/verify-token. Отозванная auth-сессия
// даёт 401 даже до истечения exp токена.
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		common.RespondUnauthorized(c, "")
		return
	}

	user, err := h.auth.VerifyToken(c.Request.Context(), header[len(prefix):])
	if err != nil {
		common.RespondUnauthorized(c, "токен невалиден")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout обрабатывает POST /auth/logout. Идемпотентен.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, err := common.CurrentToken(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		respondServiceError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "выход выполнен", nil)
}
