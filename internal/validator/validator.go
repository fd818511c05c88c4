// Package validator provides custom validation functions for Gin's binding engine
// and converts validation failures into per-field messages.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "crudadmin/internal/errors"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9]+$`)

// MinPasswordLength is the shortest accepted admin password.
const MinPasswordLength = 8

// Register registers all custom validators with the Gin binding engine and
// makes field errors report JSON/form names instead of Go field names.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("admin_username", validateAdminUsername)
		_ = v.RegisterValidation("admin_password", validateAdminPassword)
	}
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func validateAdminUsername(fl validator.FieldLevel) bool {
	return IsAdminUsername(fl.Field().String())
}

// IsAdminUsername reports whether s is 2-20 lowercase letters or digits.
func IsAdminUsername(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= 2 && n <= 20 && usernameRegex.MatchString(s)
}

func validateAdminPassword(fl validator.FieldLevel) bool {
	return utf8.RuneCountInString(fl.Field().String()) >= MinPasswordLength
}

// FieldErrors converts a binding error into a field→message map. Errors that
// are not validator errors (malformed JSON, wrong types) are reported under
// the "_body" key.
func FieldErrors(err error) map[string]string {
	fields := map[string]string{}
	if err == nil {
		return fields
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = message(fe)
		}
		return fields
	}

	fields["_body"] = err.Error()
	return fields
}

// AsValidationError wraps a binding error as an apperrors.ValidationError.
func AsValidationError(err error) *apperrors.ValidationError {
	return apperrors.NewValidationError(FieldErrors(err))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Field required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("String should have at least %s characters", fe.Param())
		}
		return fmt.Sprintf("Value should be greater than or equal to %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("String should have at most %s characters", fe.Param())
		}
		return fmt.Sprintf("Value should be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Value should be one of: %s", fe.Param())
	case "email":
		return "Value is not a valid email address"
	case "admin_username":
		return "Username must be 2-20 lowercase letters or digits"
	case "admin_password":
		return fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	}
	return fmt.Sprintf("Failed on the '%s' rule", fe.Tag())
}
