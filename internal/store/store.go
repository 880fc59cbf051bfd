// Package store defines the request/response contract of the remote store.
package store

import (
	"context"
	"fmt"
	"slices"
)

// Collection names a record set in the remote store.
type Collection string

const (
	Movies           Collection = "movies"
	WatchlistEntries Collection = "watchlist_entries"
	Reviews          Collection = "reviews"
	ReviewVotes      Collection = "review_votes"
)

// Columns lists the readable and writable columns of each collection.
//
// Implementations reject anything else before building a request.
var Columns = map[Collection][]string{
	Movies:           {"id", "title", "release_year", "genre", "average_rating", "poster_url", "duration", "director", "synopsis"},
	WatchlistEntries: {"user_id", "movie_id", "created_at"},
	Reviews:          {"id", "movie_id", "user_id", "username", "rating", "body", "created_at"},
	ReviewVotes:      {"review_id", "user_id", "created_at"},
}

// Store is the remote store as the client observes it. Every call either
// succeeds or fails with an error that [KindOf] can classify.
type Store interface {
	// Select returns the rows of c matching q.
	Select(ctx context.Context, c Collection, q Query) ([]Row, error)

	// Insert writes a single record. Constraint failures surface as [*Error] with the store's code.
	Insert(ctx context.Context, c Collection, rec Row) error

	// Delete removes every row matching q. Matching nothing is not an error.
	Delete(ctx context.Context, c Collection, q Query) error
}

// Cond is an equality filter on a column.
type Cond struct {
	Column string
	Value  any
}

// Order sorts a selection by one column.
type Order struct {
	Column     string
	Descending bool
}

// Query filters, orders and limits a selection. The zero value selects everything.
type Query struct {
	Where []Cond
	Order *Order
	Limit int
}

// Where starts a query with a single equality condition.
func Where(column string, value any) Query {
	return Query{}.And(column, value)
}

// And adds an equality condition.
func (q Query) And(column string, value any) Query {
	q.Where = append(slices.Clone(q.Where), Cond{Column: column, Value: value})
	return q
}

// OrderBy sets the sort column.
func (q Query) OrderBy(column string, descending bool) Query {
	q.Order = &Order{Column: column, Descending: descending}
	return q
}

// WithLimit caps the number of returned rows. Zero means no limit.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Validate checks q against the collection's columns.
func (q Query) Validate(c Collection) error {
	for _, cond := range q.Where {
		if err := checkColumn(c, cond.Column); err != nil {
			return err
		}
	}
	if q.Order != nil {
		if err := checkColumn(c, q.Order.Column); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	}
	return nil
}

// ValidateRow checks every key of rec against the collection's columns.
func ValidateRow(c Collection, rec Row) error {
	if len(rec) == 0 {
		return fmt.Errorf("%w: empty record for %s", ErrInvalidQuery, c)
	}
	for col := range rec {
		if err := checkColumn(c, col); err != nil {
			return err
		}
	}
	return nil
}

func checkColumn(c Collection, column string) error {
	cols, ok := Columns[c]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	if !slices.Contains(cols, column) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, c, column)
	}
	return nil
}
