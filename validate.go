package goSession

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

var fieldNames = map[string]string{
	"Username": "username",
	"Password": "password",
	"Email":    "email",
	"OTP":      "verification code",
}

// inputMessage turns validator errors into a sentence fit for AuthState.Error.
func inputMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err == nil {
			return ""
		}
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name, ok := fieldNames[fe.Field()]
		if !ok {
			name = strings.ToLower(fe.Field())
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, name+" is required")
		case "email":
			msgs = append(msgs, name+" must be a valid email address")
		case "numeric":
			msgs = append(msgs, name+" must contain only digits")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be 4 to 10 digits", name))
		default:
			msgs = append(msgs, name+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
