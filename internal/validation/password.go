package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// PasswordSymbols — фиксированный набор спецсимволов, засчитываемых политикой.
const PasswordSymbols = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?~`"

// Метки силы пароля, отдаются клиентскому интерфейсу как есть.
const (
	StrengthWeak   = "Weak"
	StrengthMedium = "Medium"
	StrengthStrong = "Strong"
)

// PasswordStrength — результат оценки пароля. Score считает выполненные
// критерии (длина, верхний и нижний регистр, цифра, спецсимвол), максимум 5.
type PasswordStrength struct {
	Score   int    `json:"score"`
	Label   string `json:"label"`
	IsValid bool   `json:"isValid"`
}

// EvaluatePassword оценивает пароль по политике платформы:
// минимум 8 символов, хотя бы одна заглавная, одна строчная, одна цифра
// и один символ из фиксированного набора. IsValid требует все пять критериев.
func EvaluatePassword(password string) PasswordStrength {
	var (
		hasLength = len(password) >= MinPasswordLength
		hasUpper  bool
		hasLower  bool
		hasDigit  bool
		hasSymbol bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		case strings.ContainsRune(PasswordSymbols, char):
			hasSymbol = true
		}
	}

	score := 0
	for _, ok := range []bool{hasLength, hasUpper, hasLower, hasDigit, hasSymbol} {
		if ok {
			score++
		}
	}

	label := StrengthWeak
	switch {
	case score == 5:
		label = StrengthStrong
	case score >= 3:
		label = StrengthMedium
	}

	return PasswordStrength{
		Score:   score,
		Label:   label,
		IsValid: score == 5,
	}
}

// ValidatePassword проверяет пароль и возвращает первую нарушенную норму.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("пароль должен быть не менее %d символов", MinPasswordLength)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		case strings.ContainsRune(PasswordSymbols, char):
			hasSymbol = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("пароль должен содержать хотя бы одну заглавную букву")
	}
	if !hasLower {
		return fmt.Errorf("пароль должен содержать хотя бы одну строчную букву")
	}
	if !hasDigit {
		return fmt.Errorf("пароль должен содержать хотя бы одну цифру")
	}
	if !hasSymbol {
		return fmt.Errorf("пароль должен содержать хотя бы один спецсимвол")
	}

	return nil
}
