package internal

import (
	"errors"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var gameFormats = map[string]bool{
	"5s": true, "6s": true, "7s": true, "8s": true, "9s": true, "10s": true, "11s": true,
}

var registerOnce sync.Once

// registerValidators adds the custom binding rules to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("gameformat", func(fl validator.FieldLevel) bool {
			return gameFormats[strings.ToLower(fl.Field().String())]
		})
	})
}

// bindingMessage turns a binding failure into a short client-facing reason.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "bad json"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gameformat":
		return "format must be one of 5s to 11s"
	case "email":
		return "invalid email"
	case "max":
		return field + " is too long"
	case "min":
		if fe.Kind().String() == "string" {
			return field + " is too short"
		}
		return field + " is required"
	case "oneof":
		return field + " must be one of " + fe.Param()
	}
	return field + " is invalid"
}
