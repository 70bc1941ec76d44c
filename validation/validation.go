// Package validation turns validator/v10 failures into field-level errors
// that can be returned to API clients before any router is contacted.
package validation

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator("validate")

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Errors struct {
	Fields []FieldError `json:"errors"`
}

func (v *Errors) Error() string {
	if len(v.Fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(v.Fields))
	for i, e := range v.Fields {
		messages[i] = e.Message
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// New builds a single-field error.
func New(field, message string) *Errors {
	return &Errors{Fields: []FieldError{{Field: field, Message: message}}}
}

func newValidator(tag string) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName(tag)
	configure(v)
	return v
}

func configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return toSnakeCase(f.Name)
		}
		return name
	})
	_ = v.RegisterValidation("dns_server", func(fl validator.FieldLevel) bool {
		return IsDNSServer(fl.Field().String())
	})
}

// RegisterGin applies the same field naming and custom tags to gin's binding engine.
func RegisterGin() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		configure(v)
	}
}

// Struct validates s using its `validate` tags.
func Struct(s interface{}) error {
	return FromError(validate.Struct(s))
}

// FromError converts validator errors into *Errors. Other errors pass through.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Errors{}
	for _, e := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   e.Field(),
			Message: formatMessage(e),
		})
	}
	return out
}

func formatMessage(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "ip", "dns_server":
		return fmt.Sprintf("%s must be a valid IP address", field)
	case "mac":
		return fmt.Sprintf("%s must be a valid MAC address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "ip|hostname_port|hostname_rfc1123":
		return fmt.Sprintf("%s must be an IP address or hostname", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

// IsMAC accepts colon or dash separated 48-bit addresses.
func IsMAC(s string) bool {
	return macPattern.MatchString(s)
}

// NormalizeMAC upper-cases and colon-separates a MAC address.
func NormalizeMAC(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ":"))
}

func IsDNSServer(s string) bool {
	return net.ParseIP(strings.TrimSpace(s)) != nil
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
