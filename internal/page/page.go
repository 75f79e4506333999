// SPDX-License-Identifier: MIT

// Package page holds the pagination envelope shared by list endpoints.
package page

const (
	DefaultSize = 20
	MaxSize     = 200
)

// Request is a zero-based page request.
type Request struct {
	Page int
	Size int
}

// Normalize clamps the request to sane bounds.
func (r Request) Normalize() Request {
	if r.Page < 0 {
		r.Page = 0
	}
	if r.Size <= 0 {
		r.Size = DefaultSize
	}
	if r.Size > MaxSize {
		r.Size = MaxSize
	}
	return r
}

// Offset returns the SQL offset for the request.
func (r Request) Offset() uint64 {
	n := r.Normalize()
	return uint64(n.Page * n.Size)
}

// Limit returns the SQL limit for the request.
func (r Request) Limit() uint64 {
	return uint64(r.Normalize().Size)
}

// Result is a single page of items plus the total count across all pages.
type Result[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// NewResult builds a Result, never returning a nil Items slice.
func NewResult[T any](items []T, req Request, total int) Result[T] {
	n := req.Normalize()
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Page: n.Page, Size: n.Size, Total: total}
}
