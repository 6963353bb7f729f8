package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/go-playground/validator/v10"
)

// Kenyan mobile numbers: 07xx/01xx, 2547xx, +2547xx or the bare 9 digits.
var kePhone = regexp.MustCompile(`^(\+?254|0)?[17]\d{8}$`)

var std = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("kephone", func(fl validator.FieldLevel) bool {
		return IsKenyanPhone(fl.Field().String())
	})
	return v
}

func IsKenyanPhone(s string) bool { return kePhone.MatchString(s) }

// Struct validates v and converts failures into a Validation apperr.
func Struct(v any) error {
	err := std.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return apperr.Validation("Validation error", fields...)
}

// Var validates a single value against a tag, e.g. Var("email", s, "email").
func Var(field string, v any, tag string) error {
	if err := std.Var(v, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperr.Validation("Validation error", apperr.FieldError{Field: field, Message: message(verrs[0])})
		}
		return apperr.Validation(err.Error())
	}
	return nil
}

// fieldPath drops the root struct name: "CreateInput.items[0].price" -> "items[0].price".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "kephone":
		return "must be a valid Kenyan phone number"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
