// Package validation wraps go-playground/validator with a shared instance,
// the subject-token rule used for identifiers that end up in NATS subjects,
// and field errors keyed by JSON name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const maxTokenLength = 128

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Error collects every failed rule of one validation pass.
type Error struct {
	Fields []FieldError `json:"fields"`
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Get returns the process-wide validator.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonName)
		_ = validate.RegisterValidation("subjecttoken", func(fl validator.FieldLevel) bool {
			return IsSubjectToken(fl.Field().String())
		})
	})
	return validate
}

// Struct validates s. The returned error is nil or an *Error.
func Struct(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}
	return convert(err)
}

// UserID checks an identifier taken from a URL path or event.
func UserID(id string) error {
	if IsSubjectToken(id) {
		return nil
	}
	return &Error{Fields: []FieldError{{
		Field:   "user_id",
		Tag:     "subjecttoken",
		Message: "user_id must be 1-128 characters without whitespace, dots or wildcards",
	}}}
}

// IsSubjectToken reports whether s can be used as a single NATS subject token.
func IsSubjectToken(s string) bool {
	if s == "" || len(s) > maxTokenLength {
		return false
	}
	return !strings.ContainsAny(s, ".*> \t\r\n")
}

func convert(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Fields: []FieldError{{Field: "body", Tag: "invalid", Message: err.Error()}}}
	}
	out := &Error{Fields: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.Fields[i] = FieldError{
			Field:   namespace(fe),
			Tag:     fe.Tag(),
			Message: message(fe),
		}
	}
	return out
}

// namespace drops the root struct name: "recommendationRequest.user_ids[0]" becomes "user_ids[0]".
func namespace(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

var messages = map[string]string{
	"required":     "%s is required",
	"required_if":  "%s is required",
	"subjecttoken": "%s must be 1-128 characters without whitespace, dots or wildcards",
}

var messagesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must have at least %s",
	"max":   "%s must have at most %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func message(fe validator.FieldError) string {
	field := namespace(fe)
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
