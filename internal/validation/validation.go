// Package validation checks user input before it reaches the network.
// Rules are declared as struct tags on the models and enforced with
// github.com/go-playground/validator/v10.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/schoolroster/roster-client/internal/models"
)

// Error is a local validation failure. It never reaches the network.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

// IsValidationError reports whether err is (or wraps) a local validation failure.
func IsValidationError(err error) bool {
	var verr *Error
	return errors.As(err, &verr)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// instance returns the shared validator with the custom tags registered.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		// Report JSON names ("username") rather than Go names ("Username")
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return strings.ToLower(fld.Name)
			}
			return name
		})

		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = validate.RegisterValidation("level", func(fl validator.FieldLevel) bool {
			return models.Level(fl.Field().String()).Valid()
		})
	})
	return validate
}

// Struct validates v against its struct tags and returns the first failure as *Error.
func Struct(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &Error{Message: err.Error()}
	}

	fe := fieldErrs[0]
	return &Error{Field: fe.Field(), Message: describe(fe)}
}

// describe turns a validator tag into readable text.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "level":
		return "must be one of " + models.LevelNames()
	case "gte":
		return "must be " + fe.Param() + " or greater"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

// Credentials checks the login form: username of 3+ characters, password of 6+.
func Credentials(c models.Credentials) error {
	return Struct(c)
}

// RegisterRequest checks the sign-up form.
func RegisterRequest(r models.RegisterRequest) error {
	return Struct(r)
}

// StudentRequest checks a create/update body.
func StudentRequest(r models.StudentRequest) error {
	return Struct(r)
}

// ListQuery checks a list query.
func ListQuery(q models.ListQuery) error {
	return Struct(q)
}

// PageIndex rejects negative page indices.
func PageIndex(n int) error {
	if n < 0 {
		return &Error{Field: "page", Message: "must be 0 or greater"}
	}
	return nil
}
