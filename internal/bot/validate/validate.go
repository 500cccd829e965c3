// Package validate holds the pure field validators used by the dialogue
// flows. Each validator returns the normalized value and a user-facing
// error message when the input is rejected.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// PasswordMinLength and PasswordMaxLength form a closed bound on the
	// digits-only password length.
	PasswordMinLength = 3
	PasswordMaxLength = 6
)

var (
	fullNameRe = regexp.MustCompile(`^[\p{L}]+ [\p{L}]+$`)
	emailRe    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@(mail|gmail|yandex)\.(ru|com)$`)
	passwordRe = regexp.MustCompile(`^\d+$`)
	priceRe    = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

// FullName checks that the input is exactly two whitespace-separated
// letter-only tokens and returns it with collapsed spacing.
func FullName(input string) (string, error) {
	normalized := strings.Join(strings.Fields(input), " ")
	if !fullNameRe.MatchString(normalized) {
		return "", fmt.Errorf("неверный формат ввода имени и фамилии 🚫\nВы указали: %s\nПопробуйте еще раз:", input)
	}
	return normalized, nil
}

// EmailLookup reports whether an account with the given email already exists.
type EmailLookup func(ctx context.Context, email string) (bool, error)

// Email checks the address against the provider whitelist and, when lookup
// is non-nil, against existing accounts.
func Email(ctx context.Context, input string, lookup EmailLookup) (string, error) {
	email := strings.ToLower(strings.TrimSpace(input))
	if !emailRe.MatchString(email) {
		return "", fmt.Errorf("введенный вариант почты %s содержит недопустимые символы 🚫\nПридумайте почту еще раз!", input)
	}
	if lookup != nil {
		taken, err := lookup(ctx, email)
		if err != nil {
			return "", fmt.Errorf("не удалось проверить почту, попробуйте позже: %w", err)
		}
		if taken {
			return "", fmt.Errorf("пользователь с email %s уже существует 🚫\nПридумайте новый", email)
		}
	}
	return email, nil
}

// Password enforces digits-only content and the closed length bound,
// echoing the offending length back on rejection.
func Password(input string) (string, error) {
	password := strings.TrimSpace(input)
	if !passwordRe.MatchString(password) {
		return "", fmt.Errorf("пароль должен содержать только цифры 🚫")
	}
	if n := len(password); n < PasswordMinLength || n > PasswordMaxLength {
		return "", fmt.Errorf(
			"пароль должен иметь длину не менее %d и не более %d 🚫\nВаша длина: %d.\nВведите пароль еще раз:",
			PasswordMinLength, PasswordMaxLength, n,
		)
	}
	return password, nil
}

// Price normalizes a comma or dot separated decimal and rejects anything
// outside digits[.digits{1,2}]. Negative values never match the pattern.
func Price(input string) (decimal.Decimal, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(input), ",", ".")
	if !priceRe.MatchString(raw) {
		return decimal.Decimal{}, fmt.Errorf("неверный формат цены 🚫\nПример: 1499.90\nПопробуйте еще раз:")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("неверный формат цены 🚫\nПопробуйте еще раз:")
	}
	return price, nil
}

// Article checks that a marketplace article is a non-empty digit string.
func Article(input string) (string, error) {
	article := strings.TrimSpace(input)
	if article == "" || !passwordRe.MatchString(article) {
		return "", fmt.Errorf("артикул должен состоять из цифр 🚫\nПопробуйте еще раз:")
	}
	return article, nil
}
