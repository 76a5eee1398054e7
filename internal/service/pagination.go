package service

import "github.com/rockymount114/City-Workflow/internal/repository"

// PageResult is one page of a listing.
type PageResult[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

func newPage[T any](items []T, total int64, p repository.Page) *PageResult[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	return &PageResult[T]{Items: items, Total: total, Page: p.Number, PageSize: p.Size}
}
