package utils

import (
	"time"

	"github.com/jinzhu/now"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page int `json:"page"`
	Size int `json:"limit"`
}

// Normalize fills zero values and enforces the size ceiling.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Size
}

// PageResult is one page of T plus the total row count.
type PageResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func NewPageResult[T any](data []T, total int64, p Page) PageResult[T] {
	p = p.Normalize()
	if data == nil {
		data = []T{}
	}
	pages := int((total + int64(p.Size) - 1) / int64(p.Size))
	return PageResult[T]{Data: data, Total: total, Page: p.Page, Limit: p.Size, TotalPages: pages}
}

// MapPage converts the rows of a page, keeping the paging fields.
func MapPage[T, U any](in PageResult[T], fn func(T) U) PageResult[U] {
	out := make([]U, len(in.Data))
	for i, v := range in.Data {
		out[i] = fn(v)
	}
	return PageResult[U]{Data: out, Total: in.Total, Page: in.Page, Limit: in.Limit, TotalPages: in.TotalPages}
}

// StartOfDay truncates t to midnight UTC. Course dates carry no time part.
func StartOfDay(t time.Time) time.Time {
	return now.With(t.UTC()).BeginningOfDay()
}

// ParseDate accepts either a calendar date or a full RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t), nil
}
