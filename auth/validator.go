package auth

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"mystiko/errors"
)

var validate = validator.New()

// RegisterRequest carries the fields validated before any account lookup
// or cryptographic work happens.
type RegisterRequest struct {
	Username string `validate:"required,alphanum,min=3,max=20"`
	Password string `validate:"required,min=4,max=72"`
}

// ValidateRegister enforces the account naming and password rules:
// 3-20 alphanumeric characters, password of at least 4.
func ValidateRegister(req RegisterRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	for _, fieldErr := range err.(validator.ValidationErrors) {
		if fieldErr.Field() == "Username" {
			return errors.ErrInvalidUsername
		}
	}
	return errors.ErrInvalidPassword
}

// ValidateRoomName checks length bounds and the allowed character set:
// letters, digits, spaces, hyphens, and underscores.
func ValidateRoomName(name string, minLen, maxLen int) error {
	if len(name) < minLen || len(name) > maxLen {
		return errors.ErrInvalidRoomName
	}
	stripped := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(name)
	if stripped == "" {
		return errors.ErrInvalidRoomName
	}
	if err := validate.Var(stripped, "alphanum"); err != nil {
		return errors.ErrInvalidRoomName
	}
	return nil
}
