package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/UkralStul/blog-service/internal/storage"
)

var (
	// ErrNotFound is returned when the requested post, group or user does
	// not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a non-author tries to edit a post.
	ErrForbidden = errors.New("only the author can edit this post")
)

// ValidationError carries per-field messages of a rejected form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// notFound maps storage misses onto ErrNotFound, keeping the context.
func notFound(err error, what string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
