// Package notify delivers transient toast notifications to editor clients.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Toast is a transient message shown to the user of one editor session.
type Toast struct {
	ID          string `json:"id"`
	Target      string `json:"target"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Time        int64  `json:"time"`
}

// Notifier displays toasts. Implementations never manage the toast lifecycle.
type Notifier interface {
	Notify(ctx context.Context, t Toast) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, t Toast) error

func (f NotifierFunc) Notify(ctx context.Context, t Toast) error { return f(ctx, t) }

// Stamp fills in the ID and time of a toast when missing.
func Stamp(t Toast) Toast {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Time == 0 {
		t.Time = time.Now().UnixMilli()
	}
	return t
}

// LogNotifier writes toasts to a structured log.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Notify(_ context.Context, t Toast) error {
	if n.Logger == nil {
		return nil
	}
	n.Logger.WithFields(log.Fields{
		"toast_id": t.ID,
		"target":   t.Target,
		"title":    t.Title,
	}).Debug(t.Description)
	return nil
}

// Multi delivers each toast to all notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, t Toast) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
