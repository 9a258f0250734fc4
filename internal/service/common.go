package service

import (
	"errors"

	"hrm/internal/domain"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a normalized 1-based pagination request.
type Page struct {
	Page  int
	Limit int
}

func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return Page{Page: page, Limit: limit}
}

// Paged is one page of a list endpoint.
type Paged[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func paged[T any](items []T, total int64, p Page) *Paged[T] {
	if items == nil {
		items = []T{}
	}
	return &Paged[T]{Items: items, Total: total, Page: p.Page, Limit: p.Limit}
}

// notFound maps gorm's missing-record error onto a user-facing 404.
func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound(msg)
	}
	return err
}
