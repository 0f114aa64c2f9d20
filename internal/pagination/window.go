// Package pagination reconstructs offset windows from fixed-size page fetches.
package pagination

import (
	"context"
	"errors"
	"fmt"
)

// MaxSize is the widest window a caller may request.
const MaxSize = 10000

// ErrInvalidWindow is returned for a negative offset or a size outside [1, MaxSize].
var ErrInvalidWindow = errors.New("invalid pagination window")

// PageRequest addresses one zero-based page of Size elements.
type PageRequest struct {
	Page int
	Size int
}

// Offset is the index of the first element of the page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one page of results and whether more follow it.
type Page[T any] struct {
	Content []T
	HasNext bool
}

// FetchFunc loads a single page from an ordered source.
type FetchFunc[T any] func(ctx context.Context, page PageRequest) (Page[T], error)

// Window returns the elements [from, from+size) of the sequence behind fetch.
// Pages are always requested with width size, so an unaligned offset reads the
// tail of page from/size and the head of the page after it.
func Window[T any](ctx context.Context, from, size int, fetch FetchFunc[T]) ([]T, error) {
	if from < 0 || size < 1 || size > MaxSize {
		return nil, fmt.Errorf("%w: from=%d size=%d", ErrInvalidWindow, from, size)
	}

	startPage := from / size
	remainder := from % size

	first, err := fetch(ctx, PageRequest{Page: startPage, Size: size})
	if err != nil {
		return nil, err
	}
	if len(first.Content) == 0 {
		return []T{}, nil
	}
	if remainder == 0 {
		return first.Content, nil
	}

	var out []T
	if remainder < len(first.Content) {
		out = append(out, first.Content[remainder:]...)
	}
	if !first.HasNext {
		if out == nil {
			return []T{}, nil
		}
		return out, nil
	}

	next, err := fetch(ctx, PageRequest{Page: startPage + 1, Size: size})
	if err != nil {
		return nil, err
	}
	needed := size - len(out)
	if needed > len(next.Content) {
		needed = len(next.Content)
	}
	return append(out, next.Content[:needed]...), nil
}

// Slice serves pages out of an in-memory ordered slice.
func Slice[T any](items []T) FetchFunc[T] {
	return func(_ context.Context, page PageRequest) (Page[T], error) {
		start := page.Offset()
		if start >= len(items) {
			return Page[T]{}, nil
		}
		end := start + page.Size
		if end > len(items) {
			end = len(items)
		}
		return Page[T]{Content: items[start:end], HasNext: end < len(items)}, nil
	}
}
