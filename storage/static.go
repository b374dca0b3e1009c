package storage

import (
	"context"

	"prism-task-editor/domain"
)

// Static serves a fixed tag catalog.
type Static struct {
	Tags []domain.Tag
}

// NewStatic returns a catalog of the default tags.
func NewStatic() *Static {
	return &Static{Tags: domain.DefaultTags()}
}

func (s *Static) FetchTags(context.Context) ([]domain.Tag, error) {
	out := make([]domain.Tag, len(s.Tags))
	copy(out, s.Tags)
	return out, nil
}
