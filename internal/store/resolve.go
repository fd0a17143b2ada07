package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pbrown/stoac/internal/models"
)

// LookupError reports a tag with no exact match, along with any stored tags
// that start with it.
type LookupError struct {
	Tag         string
	Suggestions []string
}

func (e *LookupError) Error() string {
	msg := fmt.Sprintf("command not found for tag %q", e.Tag)
	if len(e.Suggestions) > 0 {
		msg += "; did you mean: " + strings.Join(e.Suggestions, ", ")
	}
	return msg
}

// Is lets errors.Is(err, ErrNotFound) match a LookupError.
func (e *LookupError) Is(target error) bool {
	return target == ErrNotFound
}

// Resolve looks up tag exactly. On a miss it returns a *LookupError whose
// suggestions are the tags sharing tag as a prefix. A failing prefix scan
// still yields a not-found error, just without suggestions.
func (s *Store) Resolve(ctx context.Context, tag string) (models.Command, error) {
	cmd, err := s.Get(ctx, tag)
	if err == nil {
		return cmd, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.Command{}, err
	}

	suggestions, scanErr := s.Prefix(ctx, tag)
	if scanErr != nil {
		suggestions = nil
	}
	return models.Command{}, &LookupError{Tag: tag, Suggestions: suggestions}
}
