package form

import (
	"context"
	"fmt"
	"sync"

	"prism-task-editor/domain"
)

// Status is the coarse state of a form.
type Status string

const (
	StatusEditing   Status = "editing"
	StatusSubmitted Status = "submitted"
)

// Snapshot is a copy of the controller state at one point in time.
type Snapshot struct {
	Values        map[string]any    `json:"values"`
	Errors        FieldErrors       `json:"errors"`
	Status        Status            `json:"status"`
	Valid         bool              `json:"valid"`
	SubmitCount   int               `json:"submitCount"`
	LastSubmitted *domain.TaskDraft `json:"lastSubmitted,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithDefaults replaces the values the form starts with and resets to.
func WithDefaults(d domain.TaskDraft) Option {
	return func(c *Controller) { c.defaults = d.Clone() }
}

// WithTaskHint records the task supplied by the parent view. It does not change the defaults.
func WithTaskHint(d domain.TaskDraft) Option {
	return func(c *Controller) {
		hint := d.Clone()
		c.hint = &hint
	}
}

// Controller holds field values and per-field errors of one task form.
// The submit callback runs with the controller locked and must not call back into it.
type Controller struct {
	schema   *Schema
	onSubmit SubmitFunc
	defaults domain.TaskDraft
	hint     *domain.TaskDraft

	mu            sync.Mutex
	values        map[string]any
	errors        FieldErrors
	status        Status
	submitCount   int
	lastSubmitted *domain.TaskDraft
	subs          map[int]func(Snapshot)
	nextSub       int
}

// NewController creates a form in the Editing state populated with defaults.
func NewController(schema *Schema, onSubmit SubmitFunc, opts ...Option) *Controller {
	if schema == nil {
		panic("form.NewController: schema is nil")
	}
	c := &Controller{
		schema:   schema,
		onSubmit: onSubmit,
		defaults: domain.DefaultDraft(),
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resetLocked()
	return c
}

// Hint returns the task supplied by the parent view, if any.
func (c *Controller) Hint() (domain.TaskDraft, bool) {
	if c.hint == nil {
		return domain.TaskDraft{}, false
	}
	return c.hint.Clone(), true
}

// SetField stores value and re-validates that field only.
func (c *Controller) SetField(name string, value any) error {
	if !domain.IsField(name) {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	v, err := normalize(value)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", name, err)
	}
	msg, err := c.schema.ValidateField(name, v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.values[name] = v
	if msg == "" {
		delete(c.errors, name)
	} else {
		c.errors[name] = msg
	}
	c.status = StatusEditing
	snap, subs := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()

	publish(subs, snap)
	return nil
}

// Submit validates every field. On failure the errors are returned as FieldErrors and the
// values are kept. On success the submit callback receives the draft and the form resets.
func (c *Controller) Submit(ctx context.Context) (domain.TaskDraft, error) {
	c.mu.Lock()
	c.submitCount++
	draft, errs := c.schema.Validate(c.values)
	if len(errs) > 0 {
		c.errors = errs
		c.status = StatusEditing
		snap, subs := c.snapshotLocked(), c.subscribersLocked()
		c.mu.Unlock()
		publish(subs, snap)
		return domain.TaskDraft{}, errs.clone()
	}

	c.errors = FieldErrors{}
	c.status = StatusSubmitted
	submitted := draft.Clone()
	c.lastSubmitted = &submitted
	submittedSnap := c.snapshotLocked()
	if c.onSubmit != nil {
		c.onSubmit(ctx, draft.Clone())
	}
	c.resetLocked()
	snap, subs := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()

	publish(subs, submittedSnap)
	publish(subs, snap)
	return draft, nil
}

// Reset restores the defaults and clears all errors.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.resetLocked()
	snap, subs := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()
	publish(subs, snap)
}

// Value returns the current value of a field.
func (c *Controller) Value(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[name]
	return copyValue(v), ok
}

// Errors returns the current field errors.
func (c *Controller) Errors() FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors.clone()
}

// Snapshot returns a copy of the whole form state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to be called with a snapshot after every change.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) resetLocked() {
	c.values = c.defaults.FormValues()
	c.errors = FieldErrors{}
	c.status = StatusEditing
}

func (c *Controller) snapshotLocked() Snapshot {
	values := make(map[string]any, len(c.values))
	for k, v := range c.values {
		values[k] = copyValue(v)
	}
	_, errs := c.schema.Validate(c.values)
	snap := Snapshot{
		Values:      values,
		Errors:      c.errors.clone(),
		Status:      c.status,
		Valid:       len(errs) == 0,
		SubmitCount: c.submitCount,
	}
	if c.lastSubmitted != nil {
		last := c.lastSubmitted.Clone()
		snap.LastSubmitted = &last
	}
	return snap
}

func (c *Controller) subscribersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	default:
		return v
	}
}
