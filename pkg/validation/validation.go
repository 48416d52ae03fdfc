// Package validation wraps go-playground/validator with the storefront rules
// and turns field failures into a VALIDATION_ERROR with per-field details.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// LooseEmailTag accepts anything shaped like local@domain.tld.
const LooseEmailTag = "loose_email"

var looseEmailRe = regexp.MustCompile(`\S+@\S+\.\S+`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation(LooseEmailTag, func(fl validator.FieldLevel) bool {
		return IsLooseEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("trimmed_required", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// IsLooseEmail reports whether value matches \S+@\S+\.\S+.
func IsLooseEmail(value string) bool {
	return looseEmailRe.MatchString(strings.TrimSpace(value))
}

// FieldErrors collects per-field messages keyed by json field name.
type FieldErrors map[string]string

// Add records msg for field unless one is already present.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// Err returns a validation error carrying the fields, or nil when empty.
func (f FieldErrors) Err(message string) error {
	if len(f) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]string(f))
}

// Struct validates v and reports every failing field at once.
func Struct(v any) error {
	fields := FieldErrors{}
	if err := Collect(v, fields); err != nil {
		return err
	}
	return fields.Err("validation failed")
}

// Collect validates v and adds each failure to fields. The returned error is
// only set when validation could not run.
func Collect(v any, fields FieldErrors) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	for _, fe := range errs {
		fields.Add(fe.Field(), Message(fe))
	}
	return nil
}

// Message renders a human readable message for a validator failure.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "trimmed_required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email", LooseEmailTag:
		return "must be a valid email"
	case "uuid", "uuid4":
		return "must be a valid id"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return "is invalid"
}
