package wizard

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validator exposes the shared validator for forms outside the wizard
func Validator() *validator.Validate {
	return validate
}

// ValidationErrors maps a field name to a human readable message
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, v[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldErrors converts validator errors on any struct into ValidationErrors
func FieldErrors(err error) ValidationErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(ValidationErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "email":
		return "invalid email address"
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

// Validate checks the form without touching any service
func (w *Wizard) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validateLocked()
}

func (w *Wizard) validateLocked() error {
	errs := ValidationErrors{}
	if err := validate.Struct(w.form); err != nil {
		fe := FieldErrors(err)
		if fe == nil {
			return fmt.Errorf("failed to validate form: %w", err)
		}
		for k, v := range fe {
			errs[k] = v
		}
	}
	if w.MinDescription > 0 && utf8.RuneCountInString(strings.TrimSpace(w.form.Description)) < w.MinDescription {
		errs["description"] = fmt.Sprintf("description must be at least %d characters", w.MinDescription)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
