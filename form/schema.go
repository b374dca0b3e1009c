package form

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"prism-task-editor/domain"
)

//go:embed taskdraft.schema.json
var schemaDocument []byte

const schemaURL = "https://prism-plan/schemas/taskdraft.schema.json"

// customMessages overrides the schema library text for a field/keyword pair.
var customMessages = map[string]map[string]string{
	domain.FieldTitle: {
		"minLength": MsgTitleRequired,
		"required":  MsgTitleRequired,
	},
}

// Schema validates TaskDraft candidates field by field.
type Schema struct {
	document []byte
	fields   map[string]*jsonschema.Schema
}

// NewSchema compiles the embedded TaskDraft schema.
func NewSchema() (*Schema, error) {
	return compileSchema(schemaDocument)
}

// MustSchema is like NewSchema but panics when the embedded document is broken.
func MustSchema() *Schema {
	s, err := NewSchema()
	if err != nil {
		panic(err)
	}
	return s
}

func compileSchema(doc []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	if _, err := compiler.Compile(schemaURL); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	fields := make(map[string]*jsonschema.Schema, len(domain.Fields))
	for _, name := range domain.Fields {
		fs, err := compiler.Compile(schemaURL + "#/properties/" + name)
		if err != nil {
			return nil, fmt.Errorf("compile field %s: %w", name, err)
		}
		fields[name] = fs
	}
	return &Schema{document: doc, fields: fields}, nil
}

// Document returns the raw JSON schema.
func (s *Schema) Document() []byte {
	out := make([]byte, len(s.document))
	copy(out, s.document)
	return out
}

// ValidateField returns the message for a single field, or "" when the value is valid.
func (s *Schema) ValidateField(name string, value any) (string, error) {
	fs, ok := s.fields[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	v, err := normalize(value)
	if err != nil {
		return "", fmt.Errorf("normalize %s: %w", name, err)
	}
	if v == nil {
		return requiredMessage(name), nil
	}
	if err := fs.Validate(v); err != nil {
		return messageFor(name, err), nil
	}
	return "", nil
}

// Validate checks every field of candidate. Keys that are not draft fields are ignored.
func (s *Schema) Validate(candidate map[string]any) (domain.TaskDraft, FieldErrors) {
	errs := FieldErrors{}
	values := make(map[string]any, len(domain.Fields))
	for _, name := range domain.Fields {
		raw, ok := candidate[name]
		if !ok || raw == nil {
			errs[name] = requiredMessage(name)
			continue
		}
		v, err := normalize(raw)
		if err != nil {
			errs[name] = err.Error()
			continue
		}
		if err := s.fields[name].Validate(v); err != nil {
			errs[name] = messageFor(name, err)
			continue
		}
		values[name] = v
	}
	if len(errs) > 0 {
		return domain.TaskDraft{}, errs
	}
	return draftFromValues(values), nil
}

// normalize converts Go values into the generic JSON representation the schema library expects.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return t, nil
	}
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := sonic.ConfigStd.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func draftFromValues(values map[string]any) domain.TaskDraft {
	d := domain.DefaultDraft()
	d.Title, _ = values[domain.FieldTitle].(string)
	d.Category, _ = values[domain.FieldCategory].(string)
	d.IsCompleted, _ = values[domain.FieldIsCompleted].(bool)
	d.Content, _ = values[domain.FieldContent].(string)
	if tags, ok := values[domain.FieldTagIDs].([]any); ok {
		for _, tag := range tags {
			if id, ok := tag.(string); ok {
				d.TagIDs = append(d.TagIDs, id)
			}
		}
	}
	return d
}

func requiredMessage(field string) string {
	if msg, ok := customMessages[field]["required"]; ok {
		return msg
	}
	return MsgRequired
}

func messageFor(field string, err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	leaf := firstLeaf(ve)
	if msg, ok := customMessages[field][keyword(leaf.KeywordLocation)]; ok {
		return msg
	}
	return leaf.Message
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

func keyword(location string) string {
	if i := strings.LastIndex(location, "/"); i >= 0 {
		return location[i+1:]
	}
	return location
}
