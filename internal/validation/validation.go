// Package validation checks form inputs with go-playground/validator and
// reports failures per field, keyed by the field's JSON name.
package validation

import (
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

var (
	lettersRe = regexp.MustCompile(`^[A-Za-z\s]+$`)
	phoneRe   = regexp.MustCompile(`^[\d+]+$`)
)

// Sizes and genders accepted by the "size" and "gender" tags.
var (
	Sizes   = []string{"XS", "S", "M", "L", "XL", "XXL", "XXXL"}
	Genders = []string{"men", "women", "kid", "unisex"}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		default:
			return name
		}
	})

	mustRegister(v, "letters", func(fl validator.FieldLevel) bool {
		return lettersRe.MatchString(fl.Field().String())
	})
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	mustRegister(v, "password", func(fl validator.FieldLevel) bool {
		return isPassword(fl.Field().String())
	})
	mustRegister(v, "size", func(fl validator.FieldLevel) bool {
		return contains(Sizes, fl.Field().String())
	})
	mustRegister(v, "gender", func(fl validator.FieldLevel) bool {
		return contains(Genders, fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(errors.Wrapf(err, "register %q", tag))
	}
}

// isPassword reports whether s is at least six ASCII letters and digits
// with at least one of each.
func isPassword(s string) bool {
	if len(s) < 6 {
		return false
	}
	var letter, digit bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			return false
		}
	}
	return letter && digit
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Errors maps a field name to its validation messages.
type Errors map[string][]string

// Add records a message for field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Err returns e as an error, or nil if no field failed.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f)
		b.WriteString(": ")
		b.WriteString(strings.Join(e[f], ", "))
	}
	return b.String()
}

// Check validates the struct s against its `validate` tags. The returned map
// is never nil so callers can add cross-field rules before calling Err.
func Check(s any) Errors {
	out := Errors{}

	err := validate.Struct(s)
	if err == nil {
		return out
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add("_", err.Error())
		return out
	}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

// Var validates a single value against a tag expression.
func Var(field string, v any, tag string) Errors {
	out := Errors{}
	err := validate.Var(v, tag)
	if err == nil {
		return out
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add(field, err.Error())
		return out
	}
	for _, fe := range verrs {
		out.Add(field, message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "letters":
		return "may only contain letters and spaces"
	case "phone":
		return "may only contain digits and '+'"
	case "password":
		return "must be at least 6 letters and digits with at least one of each"
	case "size":
		return "must be one of: " + strings.Join(Sizes, " ")
	case "gender":
		return "must be one of: " + strings.Join(Genders, " ")
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
