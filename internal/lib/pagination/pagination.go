// Package pagination нормализует параметры страничной выдачи и считает метаданные.
package pagination

import (
	"net/url"
	"strconv"
)

const (
	// DefaultPage номер страницы по умолчанию.
	DefaultPage = 1
	// DefaultLimit размер страницы по умолчанию.
	DefaultLimit = 10
	// MaxLimit верхняя граница размера страницы.
	MaxLimit = 100
)

// Params параметры страницы после нормализации.
type Params struct {
	Page  int
	Limit int
}

// Offset смещение для SQL-запроса.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Meta описывает пагинацию в ответе API.
type Meta struct {
	TotalItems   int  `json:"totalItems"`
	TotalPages   int  `json:"totalPages"`
	CurrentPage  int  `json:"currentPage"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

// FromQuery читает page и limit из query-параметров.
// Некорректные и неположительные значения заменяются значениями по умолчанию.
func FromQuery(q url.Values) Params {
	p := Params{Page: DefaultPage, Limit: DefaultLimit}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.Limit = min(v, MaxLimit)
	}
	return p
}

// NewMeta считает метаданные для total элементов.
func NewMeta(p Params, total int) Meta {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return Meta{
		TotalItems:   total,
		TotalPages:   totalPages,
		CurrentPage:  p.Page,
		ItemsPerPage: p.Limit,
		HasNextPage:  p.Page < totalPages,
		HasPrevPage:  p.Page > 1,
	}
}
