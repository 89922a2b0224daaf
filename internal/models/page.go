package models

import "fmt"

// Page is one slice of a paginated collection, in the backend's wire shape.
type Page[T any] struct {
	Content       []T  `json:"content" yaml:"content"`
	TotalPages    int  `json:"totalPages" yaml:"totalPages"`
	TotalElements int  `json:"totalElements" yaml:"totalElements"`
	Number        int  `json:"number" yaml:"number"`
	Size          int  `json:"size" yaml:"size"`
	First         bool `json:"first" yaml:"first"`
	Last          bool `json:"last" yaml:"last"`
	Empty         bool `json:"empty" yaml:"empty"`
}

// Validate checks the page's derived flags against its counters.
func (p *Page[T]) Validate() error {
	if p.TotalPages < 0 || p.TotalElements < 0 || p.Number < 0 {
		return fmt.Errorf("page has negative counters (pages=%d, elements=%d, number=%d)",
			p.TotalPages, p.TotalElements, p.Number)
	}
	if p.Size <= 0 {
		return fmt.Errorf("page size must be positive, got %d", p.Size)
	}
	if p.First != (p.Number == 0) {
		return fmt.Errorf("page %d has first=%t", p.Number, p.First)
	}
	wantLast := p.TotalPages == 0 || p.Number == p.TotalPages-1
	if p.Last != wantLast {
		return fmt.Errorf("page %d of %d has last=%t", p.Number, p.TotalPages, p.Last)
	}
	if p.Empty != (len(p.Content) == 0) {
		return fmt.Errorf("page with %d items has empty=%t", len(p.Content), p.Empty)
	}
	return nil
}

// NewPage builds a consistent page from a content slice and counters.
// Used by tests and fake backends.
func NewPage[T any](content []T, number, size, totalElements int) *Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = (totalElements + size - 1) / size
	}
	return &Page[T]{
		Content:       content,
		TotalPages:    totalPages,
		TotalElements: totalElements,
		Number:        number,
		Size:          size,
		First:         number == 0,
		Last:          totalPages == 0 || number == totalPages-1,
		Empty:         len(content) == 0,
	}
}

// PageNumbers returns every page index from 0 to TotalPages-1, for pagers.
func (p *Page[T]) PageNumbers() []int {
	numbers := make([]int, p.TotalPages)
	for i := range numbers {
		numbers[i] = i
	}
	return numbers
}
