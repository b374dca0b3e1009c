package domain

// Field names of a TaskDraft as they appear on the wire.
const (
	FieldTitle       = "title"
	FieldCategory    = "category"
	FieldIsCompleted = "isCompleted"
	FieldContent     = "content"
	FieldTagIDs      = "tagIds"
)

// Fields lists the draft fields in serialization order.
var Fields = []string{FieldTitle, FieldCategory, FieldIsCompleted, FieldContent, FieldTagIDs}

// TaskDraft is the in-memory record edited by the task form. It is never persisted.
type TaskDraft struct {
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	IsCompleted bool     `json:"isCompleted"`
	Content     string   `json:"content"`
	TagIDs      []string `json:"tagIds"`
}

// DefaultDraft returns the values a freshly mounted form starts with.
func DefaultDraft() TaskDraft {
	return TaskDraft{TagIDs: []string{}}
}

// Clone returns a deep copy with a non-nil tag slice.
func (d TaskDraft) Clone() TaskDraft {
	out := d
	out.TagIDs = make([]string, len(d.TagIDs))
	copy(out.TagIDs, d.TagIDs)
	return out
}

// Values flattens the draft into JSON-shaped values keyed by field name.
func (d TaskDraft) Values() map[string]any {
	tags := make([]any, len(d.TagIDs))
	for i, id := range d.TagIDs {
		tags[i] = id
	}
	return map[string]any{
		FieldTitle:       d.Title,
		FieldCategory:    d.Category,
		FieldIsCompleted: d.IsCompleted,
		FieldContent:     d.Content,
		FieldTagIDs:      tags,
	}
}

// FormValues is like Values but leaves an empty category unset, so an unselected
// category reads as missing rather than as a chosen value.
func (d TaskDraft) FormValues() map[string]any {
	values := d.Values()
	if d.Category == "" {
		delete(values, FieldCategory)
	}
	return values
}

// IsField reports whether name is one of the draft fields.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}
