package dto

// SignupSendOTPRequest represents the first signup step payload
type SignupSendOTPRequest struct {
	Email       string `json:"email" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	FullName    string `json:"fullName" binding:"required"`
}

// SignupVerifyOTPRequest represents the dual-channel OTP verification payload
type SignupVerifyOTPRequest struct {
	SessionKey string `json:"sessionKey" binding:"required"`
	EmailOTP   string `json:"emailOTP"`
	PhoneOTP   string `json:"phoneOTP"`
}

// SignupCompleteRequest represents the final signup step payload
type SignupCompleteRequest struct {
	SessionKey string `json:"sessionKey" binding:"required"`
	Password   string `json:"password" binding:"required"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}

// LoginRequest represents the login payload
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// ForgotPasswordRequest starts the password reset flow
type ForgotPasswordRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// ResetPasswordRequest represents the reset submission payload
type ResetPasswordRequest struct {
	SessionKey  string `json:"sessionKey" binding:"required"`
	EmailOTP    string `json:"emailOTP" binding:"required"`
	PhoneOTP    string `json:"phoneOTP" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ResendOTPRequest requests new codes for a verification session
type ResendOTPRequest struct {
	SessionKey string `json:"sessionKey" binding:"required"`
	Type       string `json:"type" binding:"required"`
}

// SubmitAttemptRequest represents a test submission; keys are question IDs,
// values are chosen option indexes
type SubmitAttemptRequest struct {
	Answers    map[string]int `json:"answers" binding:"required"`
	TimeTakenS int            `json:"timeTakenSeconds"`
}

// UpdateProfileRequest represents the profile update payload
type UpdateProfileRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName"`
}
