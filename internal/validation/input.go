package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinFullNameLength   = 2
	MaxFullNameLength   = 100
	MinIdentifierLength = 3
	MaxIdentifierLength = 100
	MinPasswordLength   = 8
	OTPLength           = 6
)

// Типы идентификатора при входе. Определение нужно только клиентскому
// интерфейсу (подсказка типа ввода); на сервер идентификатор уходит как есть.
const (
	IdentifierEmail = "email"
	IdentifierPhone = "phone"
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	phoneLikeRegex   = regexp.MustCompile(`^\+?[0-9][0-9\s-]{5,}$`)
	otpRegex         = regexp.MustCompile(`^[0-9]{6}$`)
)

// ValidateLength проверяет длину строки в рунах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart, domainPart := parts[0], parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateFullName проверяет полное имя пользователя.
func ValidateFullName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("имя обязательно")
	}
	return ValidateLength("имя", name, MinFullNameLength, MaxFullNameLength)
}

// ValidateIdentifier проверяет идентификатор для входа или сброса пароля
// (email либо телефон, 3–100 символов).
func ValidateIdentifier(identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("укажите email или номер телефона")
	}
	return ValidateLength("идентификатор", identifier, MinIdentifierLength, MaxIdentifierLength)
}

// DetectIdentifierKind определяет, похож ли идентификатор на email или телефон.
// Сначала проверяется email-паттерн, затем телефонный; по умолчанию email.
func DetectIdentifierKind(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if ValidateEmail(identifier) == nil {
		return IdentifierEmail
	}
	if phoneLikeRegex.MatchString(identifier) {
		return IdentifierPhone
	}
	return IdentifierEmail
}

// ValidateOTP проверяет, что код состоит ровно из шести цифр.
func ValidateOTP(code string) error {
	if !otpRegex.MatchString(code) {
		return fmt.Errorf("код должен состоять из %d цифр", OTPLength)
	}
	return nil
}

// SplitFullName делит полное имя на имя и фамилию.
// Всё после первого слова уходит в фамилию.
func SplitFullName(fullName string) (firstName, lastName string) {
	fields := strings.Fields(strings.TrimSpace(fullName))
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
