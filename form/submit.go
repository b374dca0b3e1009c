package form

import (
	"context"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"prism-task-editor/domain"
	"prism-task-editor/notify"
)

// SubmittedTitle is the toast title shown after a successful submit.
const SubmittedTitle = "You submitted the following values:"

var renderAPI = sonic.Config{ValidateString: true}.Froze()

// SubmitFunc receives a draft that already passed validation.
type SubmitFunc func(ctx context.Context, draft domain.TaskDraft)

// SubmitHandler echoes submitted drafts to the notification surface.
type SubmitHandler struct {
	notifier notify.Notifier
	logger   *log.Logger
}

// NewSubmitHandler creates a handler that sends toasts through n.
func NewSubmitHandler(n notify.Notifier, logger *log.Logger) *SubmitHandler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &SubmitHandler{notifier: n, logger: logger}
}

// Render serializes the draft as two-space indented JSON in field order.
func Render(draft domain.TaskDraft) (string, error) {
	data, err := renderAPI.MarshalIndent(draft.Clone(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// For binds the handler to one editor session.
func (h *SubmitHandler) For(target string) SubmitFunc {
	return func(ctx context.Context, draft domain.TaskDraft) {
		h.Handle(ctx, target, draft)
	}
}

// Handle shows the draft to the user of target. Delivery failures are logged, never returned.
func (h *SubmitHandler) Handle(ctx context.Context, target string, draft domain.TaskDraft) {
	desc, err := Render(draft)
	if err != nil {
		h.logger.WithField("target", target).Errorf("render draft: %v", err)
		return
	}
	if h.notifier == nil {
		return
	}
	toast := notify.Stamp(notify.Toast{Target: target, Title: SubmittedTitle, Description: desc})
	if err := h.notifier.Notify(ctx, toast); err != nil {
		h.logger.WithFields(log.Fields{
			"target":   target,
			"toast_id": toast.ID,
		}).Warnf("notify submit: %v", err)
	}
}
