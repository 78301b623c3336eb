package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field names with meaning to the pipeline. Any other column is only
// reachable through template placeholders.
const (
	FieldTo       = "to"
	FieldEmail    = "email"
	FieldTitle    = "title"
	FieldCompany  = "company"
	FieldPosition = "position"
	FieldDate     = "date"
)

// ErrInvalidRecord is returned when a record lacks a required field.
var ErrInvalidRecord = errors.New("invalid record")

// Record is one spreadsheet row keyed by the header row's field names.
type Record struct {
	Row    int               `json:"row"`
	Fields map[string]string `json:"fields"`
}

// Get returns the trimmed value for key, or "" when absent.
func (r Record) Get(key string) string {
	if r.Fields == nil {
		return ""
	}
	return strings.TrimSpace(r.Fields[key])
}

// DisplayName is the recipient name used in letters and file names.
func (r Record) DisplayName() string {
	return r.Get(FieldTo)
}

// Email is the delivery address.
func (r Record) Email() string {
	return r.Get(FieldEmail)
}

type requiredFields struct {
	To    string `json:"to" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRecord checks that the record carries a display name and a
// well-formed email address.
func ValidateRecord(r Record) error {
	err := validate.Struct(requiredFields{To: r.DisplayName(), Email: r.Email()})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fmt.Sprintf("missing required field %q", fe.Field()))
		case "email":
			problems = append(problems, fmt.Sprintf("field %q is not a valid email address", fe.Field()))
		default:
			problems = append(problems, fmt.Sprintf("field %q failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(problems, "; "))
}
