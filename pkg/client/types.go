package client

import "fmt"

// Item is a single entry of a remote collection. Identity is ID.
type Item struct {
	OwnerID int    `json:"userId"`
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// PageRequest selects one page of a collection.
type PageRequest struct {
	// Page is 1-based.
	Page int
	// Size is the fixed number of items per page.
	Size int
}

// Validate checks the page bounds.
func (r PageRequest) Validate() error {
	if r.Page < 1 {
		return fmt.Errorf("page must be >= 1 (got %d)", r.Page)
	}
	if r.Size <= 0 {
		return fmt.Errorf("page size must be > 0 (got %d)", r.Size)
	}
	return nil
}
