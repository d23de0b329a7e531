package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Country описывает страну с телефонным кодом для валидации номера.
type Country struct {
	Code     string // ISO 3166-1 alpha-2
	DialCode string // без плюса
}

// Справочник стран, используемых в форме регистрации. Полный список живёт
// на клиенте; здесь только то, что нужно для правил валидации.
var countries = map[string]Country{
	"IN": {Code: "IN", DialCode: "91"},
	"US": {Code: "US", DialCode: "1"},
	"CA": {Code: "CA", DialCode: "1"},
	"GB": {Code: "GB", DialCode: "44"},
	"AU": {Code: "AU", DialCode: "61"},
	"AE": {Code: "AE", DialCode: "971"},
	"SG": {Code: "SG", DialCode: "65"},
	"NP": {Code: "NP", DialCode: "977"},
	"LK": {Code: "LK", DialCode: "94"},
	"BD": {Code: "BD", DialCode: "880"},
}

var (
	digitsOnlyRegex = regexp.MustCompile(`^[0-9]+$`)
	indiaMobile     = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	e164Regex       = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)
)

// CountryByCode возвращает страну по ISO коду.
func CountryByCode(code string) (Country, bool) {
	c, ok := countries[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// NormalizePhoneDigits убирает пробелы, дефисы и скобки из введённого номера.
func NormalizePhoneDigits(raw string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
}

// ValidatePhoneForCountry проверяет национальный номер (без кода страны)
// по правилам выбранной страны:
//   - Индия: ровно 10 цифр, первая 6–9;
//   - Северная Америка (US/CA): ровно 10 цифр;
//   - остальные: от 7 до 15 цифр.
func ValidatePhoneForCountry(countryCode, raw string) error {
	digits := NormalizePhoneDigits(raw)
	if digits == "" {
		return fmt.Errorf("номер телефона обязателен")
	}
	if !digitsOnlyRegex.MatchString(digits) {
		return fmt.Errorf("номер телефона должен содержать только цифры")
	}

	country, ok := CountryByCode(countryCode)
	if !ok {
		country = Country{Code: countryCode}
	}

	switch country.Code {
	case "IN":
		if !indiaMobile.MatchString(digits) {
			return fmt.Errorf("индийский номер должен содержать 10 цифр и начинаться с 6, 7, 8 или 9")
		}
	case "US", "CA":
		if len(digits) != 10 {
			return fmt.Errorf("номер должен содержать ровно 10 цифр")
		}
	default:
		if len(digits) < 7 || len(digits) > 15 {
			return fmt.Errorf("номер должен содержать от 7 до 15 цифр")
		}
	}

	return nil
}

// FormatPhoneE164 собирает полный номер с кодом страны: "+<dial><digits>".
func FormatPhoneE164(countryCode, raw string) (string, error) {
	if err := ValidatePhoneForCountry(countryCode, raw); err != nil {
		return "", err
	}
	country, ok := CountryByCode(countryCode)
	if !ok {
		return "", fmt.Errorf("неизвестная страна %q", countryCode)
	}
	return "+" + country.DialCode + NormalizePhoneDigits(raw), nil
}

// ValidatePhoneE164 проверяет уже собранный полный номер (для серверной стороны).
func ValidatePhoneE164(phone string) error {
	if !e164Regex.MatchString(phone) {
		return fmt.Errorf("номер телефона должен быть в формате +<код страны><номер>")
	}
	return nil
}
