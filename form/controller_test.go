package form

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"prism-task-editor/domain"
	"prism-task-editor/notify"
)

type recordingNotifier struct {
	toasts []notify.Toast
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, t notify.Toast) error {
	r.toasts = append(r.toasts, t)
	return r.err
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func fill(t *testing.T, c *Controller, values map[string]any) {
	t.Helper()
	for _, name := range domain.Fields {
		v, ok := values[name]
		if !ok {
			continue
		}
		if err := c.SetField(name, v); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
}

func assertDefaults(t *testing.T, snap Snapshot) {
	t.Helper()
	want := domain.DefaultDraft().FormValues()
	if !reflect.DeepEqual(snap.Values, want) {
		t.Fatalf("expected defaults %#v, got %#v", want, snap.Values)
	}
	if len(snap.Errors) != 0 {
		t.Fatalf("expected no errors after reset, got %v", snap.Errors)
	}
}

func TestControllerStartsWithDefaults(t *testing.T) {
	c := NewController(MustSchema(), nil)
	snap := c.Snapshot()
	assertDefaults(t, snap)
	if snap.Status != StatusEditing || snap.Valid {
		t.Fatalf("unexpected initial state %#v", snap)
	}
}

func TestControllerSetFieldValidatesEagerly(t *testing.T) {
	c := NewController(MustSchema(), nil)
	if err := c.SetField("title", "A"); err != nil {
		t.Fatalf("set title: %v", err)
	}
	if got := c.Errors()["title"]; got != MsgTitleRequired {
		t.Fatalf("expected title error, got %q", got)
	}
	if err := c.SetField("title", "Ab"); err != nil {
		t.Fatalf("set title: %v", err)
	}
	if _, ok := c.Errors()["title"]; ok {
		t.Fatalf("expected title error to clear")
	}
	v, _ := c.Value("title")
	if v != "Ab" {
		t.Fatalf("unexpected title %v", v)
	}
}

func TestControllerSetFieldUnknownLeavesStateUnchanged(t *testing.T) {
	c := NewController(MustSchema(), nil)
	before := c.Snapshot()
	if err := c.SetField("priority", 3); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if !reflect.DeepEqual(before, c.Snapshot()) {
		t.Fatalf("state changed after unknown field")
	}
}

func TestControllerSubmitSuccessScenario(t *testing.T) {
	rec := &recordingNotifier{}
	handler := NewSubmitHandler(rec, quietLogger())

	var got []domain.TaskDraft
	c := NewController(MustSchema(), func(ctx context.Context, d domain.TaskDraft) {
		got = append(got, d)
		handler.Handle(ctx, "session-1", d)
	})
	fill(t, c, validCandidate())

	draft, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := domain.TaskDraft{Title: "Buy milk", Category: "1", TagIDs: []string{"react", "vue"}}
	if !reflect.DeepEqual(draft, want) {
		t.Fatalf("unexpected draft %#v", draft)
	}
	if len(got) != 1 || !reflect.DeepEqual(got[0], want) {
		t.Fatalf("handler received %#v", got)
	}

	if len(rec.toasts) != 1 {
		t.Fatalf("expected one toast, got %d", len(rec.toasts))
	}
	toast := rec.toasts[0]
	wantDesc := "{\n" +
		"  \"title\": \"Buy milk\",\n" +
		"  \"category\": \"1\",\n" +
		"  \"isCompleted\": false,\n" +
		"  \"content\": \"\",\n" +
		"  \"tagIds\": [\n" +
		"    \"react\",\n" +
		"    \"vue\"\n" +
		"  ]\n" +
		"}"
	if toast.Title != SubmittedTitle || toast.Description != wantDesc || toast.Target != "session-1" {
		t.Fatalf("unexpected toast %#v", toast)
	}

	snap := c.Snapshot()
	assertDefaults(t, snap)
	if snap.SubmitCount != 1 || snap.LastSubmitted == nil || snap.LastSubmitted.Title != "Buy milk" {
		t.Fatalf("unexpected snapshot after submit %#v", snap)
	}
}

func TestControllerSubmitFailureKeepsValues(t *testing.T) {
	called := false
	c := NewController(MustSchema(), func(context.Context, domain.TaskDraft) { called = true })
	values := validCandidate()
	values["title"] = "A"
	values["content"] = "some notes"
	fill(t, c, values)

	_, err := c.Submit(context.Background())
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if len(fe) != 1 || fe["title"] != MsgTitleRequired {
		t.Fatalf("expected only title error, got %v", fe)
	}
	if called {
		t.Fatalf("submit handler must not run on invalid draft")
	}

	snap := c.Snapshot()
	if snap.Values["title"] != "A" || snap.Values["content"] != "some notes" || snap.Values["category"] != "1" {
		t.Fatalf("values were reset: %#v", snap.Values)
	}
	if !reflect.DeepEqual(snap.Values["tagIds"], []any{"react", "vue"}) {
		t.Fatalf("tags were reset: %#v", snap.Values["tagIds"])
	}
	if snap.Errors["title"] != MsgTitleRequired || snap.SubmitCount != 1 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
}

func TestControllerSubmitUntouchedFormFails(t *testing.T) {
	c := NewController(MustSchema(), func(context.Context, domain.TaskDraft) {
		t.Fatal("handler called for default form")
	})
	_, err := c.Submit(context.Background())
	if err == nil {
		t.Fatal("expected validation error")
	}
	if c.Errors()["title"] != MsgTitleRequired {
		t.Fatalf("unexpected errors %v", c.Errors())
	}
}

func TestControllerSubmitRequiresCategory(t *testing.T) {
	called := false
	c := NewController(MustSchema(), func(context.Context, domain.TaskDraft) { called = true })
	if err := c.SetField("title", "Buy milk"); err != nil {
		t.Fatalf("set title: %v", err)
	}

	_, err := c.Submit(context.Background())
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if len(fe) != 1 || fe["category"] != MsgRequired {
		t.Fatalf("expected only category error, got %v", fe)
	}
	if called {
		t.Fatalf("submit handler must not run without a category")
	}
	if v, _ := c.Value("title"); v != "Buy milk" {
		t.Fatalf("title was reset: %v", v)
	}

	if err := c.SetField("category", nil); err != nil {
		t.Fatalf("clear category: %v", err)
	}
	if c.Errors()["category"] != MsgRequired {
		t.Fatalf("expected cleared category to be required, got %v", c.Errors())
	}
	if err := c.SetField("category", "2"); err != nil {
		t.Fatalf("set category: %v", err)
	}
	draft, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !called || draft.Category != "2" {
		t.Fatalf("unexpected draft %#v", draft)
	}
}

func TestControllerUnknownTagsRoundTrip(t *testing.T) {
	var got domain.TaskDraft
	c := NewController(MustSchema(), func(_ context.Context, d domain.TaskDraft) { got = d })
	values := validCandidate()
	values["tagIds"] = []string{"cobol", "react"}
	fill(t, c, values)
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !reflect.DeepEqual(got.TagIDs, []string{"cobol", "react"}) {
		t.Fatalf("tags changed: %#v", got.TagIDs)
	}
}

func TestControllerResetIsIdempotent(t *testing.T) {
	c := NewController(MustSchema(), nil)
	fill(t, c, map[string]any{"title": "A", "isCompleted": true})
	c.Reset()
	first := c.Snapshot()
	c.Reset()
	second := c.Snapshot()
	assertDefaults(t, first)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reset is not idempotent")
	}
}

func TestControllerTaskHintDoesNotPopulateDefaults(t *testing.T) {
	hint := domain.TaskDraft{Title: "From parent", TagIDs: []string{"vue"}}
	c := NewController(MustSchema(), nil, WithTaskHint(hint))
	got, ok := c.Hint()
	if !ok || got.Title != "From parent" {
		t.Fatalf("hint not recorded: %#v", got)
	}
	assertDefaults(t, c.Snapshot())
}

func TestControllerWithDefaults(t *testing.T) {
	defaults := domain.TaskDraft{Title: "Preset", Category: "2", TagIDs: []string{"ember"}}
	c := NewController(MustSchema(), nil, WithDefaults(defaults))
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit preset: %v", err)
	}
	if v, _ := c.Value("title"); v != "Preset" {
		t.Fatalf("expected reset to custom defaults, got %v", v)
	}
}

func TestControllerSubscribe(t *testing.T) {
	c := NewController(MustSchema(), nil)
	var statuses []Status
	cancel := c.Subscribe(func(s Snapshot) { statuses = append(statuses, s.Status) })

	fill(t, c, validCandidate())
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	n := len(statuses)
	if n < 2 || statuses[n-2] != StatusSubmitted || statuses[n-1] != StatusEditing {
		t.Fatalf("unexpected status sequence %v", statuses)
	}

	cancel()
	_ = c.SetField("title", "changed")
	if len(statuses) != n {
		t.Fatalf("subscriber called after cancel")
	}
}

func TestSubmitHandlerSwallowsNotifierErrors(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("down")}
	h := NewSubmitHandler(rec, quietLogger())
	c := NewController(MustSchema(), h.For("s1"))
	fill(t, c, validCandidate())
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit should not fail on notifier errors: %v", err)
	}
	if len(rec.toasts) != 1 || rec.toasts[0].ID == "" {
		t.Fatalf("unexpected toasts %#v", rec.toasts)
	}
	assertDefaults(t, c.Snapshot())
}

func TestRenderEmptyTags(t *testing.T) {
	out, err := Render(domain.TaskDraft{Title: "x<y"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "{\n  \"title\": \"x<y\",\n  \"category\": \"\",\n  \"isCompleted\": false,\n  \"content\": \"\",\n  \"tagIds\": []\n}"
	if out != want {
		t.Fatalf("unexpected render:\n%s", out)
	}
}

func TestRenderReplacesInvalidUTF8(t *testing.T) {
	out, err := Render(domain.TaskDraft{Title: "bad\xffutf"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !utf8.ValidString(out) {
		t.Fatalf("render kept invalid UTF-8: %q", out)
	}
	var back domain.TaskDraft
	if err := sonic.UnmarshalString(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Title != "bad\uFFFDutf" {
		t.Fatalf("unexpected title %q", back.Title)
	}
}
