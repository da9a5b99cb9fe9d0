package form

import (
	"fmt"
	"strings"
)

// Field names an editable field of the draft.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldExpertise   Field = "expertise"
	FieldPatient     Field = "patient"
)

// Rule is a pure predicate over a raw field value. A nil return means the
// value is acceptable.
type Rule func(value string) error

// RequiredFieldError blocks submission and is rendered inline under the
// field, never as a status notification.
type RequiredFieldError struct {
	Field   Field
	Message string
}

func (e RequiredFieldError) Error() string { return e.Message }

// UnknownValueError rejects a value outside an externally supplied vocabulary.
type UnknownValueError struct {
	Field Field
	Value string
}

func (e UnknownValueError) Error() string {
	return fmt.Sprintf("%s %q is not a known value", e.Field, e.Value)
}

// Required fails when the trimmed value is empty.
func Required(field Field, message string) Rule {
	return func(value string) error {
		if strings.TrimSpace(value) == "" {
			return RequiredFieldError{Field: field, Message: message}
		}
		return nil
	}
}

// Vocabulary fails when a non-empty value is not accepted by knows.
// The empty value passes; optionality is Required's concern.
func Vocabulary(field Field, knows func(string) bool) Rule {
	return func(value string) error {
		if value == "" || knows(value) {
			return nil
		}
		return UnknownValueError{Field: field, Value: value}
	}
}
