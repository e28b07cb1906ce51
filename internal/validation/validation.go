package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// LoginPattern определяет допустимый формат login
// Только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 4-20 символов
var LoginPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{4,20}$`)

const (
	// MinLoginLen минимальная длина login
	MinLoginLen = 4
	// MaxLoginLen максимальная длина login
	MaxLoginLen = 20
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 4
	// MaxPasswordLen максимальная длина пароля
	MaxPasswordLen = 24
	// MaxEmailLen максимальная длина email
	MaxEmailLen = 50
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the custom "login" tag registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("login", func(fl validator.FieldLevel) bool {
			return LoginPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Struct validates a tagged request struct and returns a readable error.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid request: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s is not an email", field)
	case "login":
		return fmt.Sprintf("%s can only contain letters, numbers and underscores (%d-%d symbols)", field, MinLoginLen, MaxLoginLen)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", field, fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ValidateLogin проверяет, что login соответствует требованиям
func ValidateLogin(login string) error {
	if login == "" {
		return fmt.Errorf("login cannot be empty")
	}

	if len(login) < MinLoginLen {
		return fmt.Errorf("login needs to have at least %d symbols", MinLoginLen)
	}

	if len(login) > MaxLoginLen {
		return fmt.Errorf("login cannot have more than %d symbols", MaxLoginLen)
	}

	if !LoginPattern.MatchString(login) {
		return fmt.Errorf("login can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}

	return nil
}

// ValidatePassword проверяет длину пароля
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password needs to have at least %d symbols", MinPasswordLen)
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password cannot have more than %d symbols", MaxPasswordLen)
	}

	return nil
}

// ValidateEmail проверяет формат и длину email
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if len(email) > MaxEmailLen {
		return fmt.Errorf("email is too long")
	}

	if err := Validator().Var(email, "email"); err != nil {
		return fmt.Errorf("not an email")
	}

	return nil
}
