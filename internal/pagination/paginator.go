// Package pagination splits ordered collections into numbered pages.
//
// Page numbers are 1-based. A page parameter that is not an integer selects
// the first page; an integer outside the valid range selects the last page.
// An empty collection still has one (empty) page.
package pagination

import (
	"context"
	"strconv"
	"strings"
)

// DefaultPerPage is used when a Paginator is built with a non-positive size.
const DefaultPerPage = 10

// Page is one slice of an ordered listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Number     int `json:"number"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	NumPages   int `json:"numPages"`
}

func (p *Page[T]) HasNext() bool     { return p.Number < p.NumPages }
func (p *Page[T]) HasPrevious() bool { return p.Number > 1 }

// Window is the resolved position of a page within a collection.
type Window struct {
	Number   int
	NumPages int
	Offset   int
	Limit    int
}

// Paginator holds the page size shared by every listing.
type Paginator struct {
	PerPage int
}

// New returns a Paginator, falling back to DefaultPerPage.
func New(perPage int) Paginator {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return Paginator{PerPage: perPage}
}

func (p Paginator) perPage() int {
	if p.PerPage <= 0 {
		return DefaultPerPage
	}
	return p.PerPage
}

// Window resolves the raw page parameter against total items.
func (p Paginator) Window(total int, raw string) Window {
	size := p.perPage()

	numPages := 1
	if total > 0 {
		numPages = (total + size - 1) / size
	}

	number, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case err != nil:
		number = 1
	case number < 1 || number > numPages:
		number = numPages
	}

	return Window{
		Number:   number,
		NumPages: numPages,
		Offset:   (number - 1) * size,
		Limit:    size,
	}
}

// Slice paginates an in-memory collection.
func Slice[T any](p Paginator, items []T, raw string) *Page[T] {
	w := p.Window(len(items), raw)

	end := w.Offset + w.Limit
	if end > len(items) {
		end = len(items)
	}
	page := make([]T, 0, end-w.Offset)
	page = append(page, items[w.Offset:end]...)

	return &Page[T]{
		Items:      page,
		Number:     w.Number,
		PerPage:    w.Limit,
		TotalItems: len(items),
		NumPages:   w.NumPages,
	}
}

// Paginate counts the collection, resolves the page and fetches only that
// page from the source.
func Paginate[T any](
	ctx context.Context,
	p Paginator,
	raw string,
	count func(ctx context.Context) (int, error),
	fetch func(ctx context.Context, limit, offset int) ([]T, error),
) (*Page[T], error) {
	total, err := count(ctx)
	if err != nil {
		return nil, err
	}
	w := p.Window(total, raw)

	items, err := fetch(ctx, w.Limit, w.Offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}

	return &Page[T]{
		Items:      items,
		Number:     w.Number,
		PerPage:    w.Limit,
		TotalItems: total,
		NumPages:   w.NumPages,
	}, nil
}

// Map converts page items while keeping the page position.
func Map[T, U any](p *Page[T], fn func(T) U) *Page[U] {
	items := make([]U, len(p.Items))
	for i, it := range p.Items {
		items[i] = fn(it)
	}
	return &Page[U]{
		Items:      items,
		Number:     p.Number,
		PerPage:    p.PerPage,
		TotalItems: p.TotalItems,
		NumPages:   p.NumPages,
	}
}
