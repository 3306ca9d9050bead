// Package search runs web searches for the chat front ends.
package search

import (
	"context"
)

// MaxResults is the number of results requested per query.
const MaxResults = 5

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher performs web searches.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Error is returned for every transport or API failure. Message is safe to
// show to the user; Err holds the cause.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }
