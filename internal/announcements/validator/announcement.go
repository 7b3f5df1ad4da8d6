package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"smartassist/pkg/logger"
	"smartassist/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Field+": "+err.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

type AnnouncementValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAnnouncementValidator(log *logger.Logger) *AnnouncementValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	return &AnnouncementValidator{validate: v, logger: log}
}

func (v *AnnouncementValidator) Validate(a *model.AnnouncementCreate) error {
	err := v.validate.Struct(a)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(validationErrs))
	for _, fe := range validationErrs {
		message := fe.Error()
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", fe.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		out = append(out, ValidationError{Field: fe.Field(), Message: message})
	}
	return out
}
