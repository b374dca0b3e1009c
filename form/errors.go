package form

import (
	"errors"
	"sort"
	"strings"

	"prism-task-editor/domain"
)

// ErrUnknownField is returned when a field name is not part of the draft.
var ErrUnknownField = errors.New("unknown field")

// Messages shown for missing fields.
const (
	MsgTitleRequired = "Title is required"
	MsgRequired      = "Required"
)

// ValidationError describes why a single field was rejected.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// FieldErrors maps field names to the message displayed under the field.
type FieldErrors map[string]string

// Error lists the failing fields in draft order.
func (fe FieldErrors) Error() string {
	list := fe.List()
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// List returns the errors ordered like the draft fields.
func (fe FieldErrors) List() []ValidationError {
	out := make([]ValidationError, 0, len(fe))
	for name, msg := range fe {
		out = append(out, ValidationError{Field: name, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool {
		return fieldIndex(out[i].Field) < fieldIndex(out[j].Field)
	})
	return out
}

func (fe FieldErrors) clone() FieldErrors {
	out := make(FieldErrors, len(fe))
	for k, v := range fe {
		out[k] = v
	}
	return out
}

func fieldIndex(name string) int {
	for i, f := range domain.Fields {
		if f == name {
			return i
		}
	}
	return len(domain.Fields)
}
