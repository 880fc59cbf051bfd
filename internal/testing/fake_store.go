package testing

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/desertthunder/marquee/internal/store"
)

// Store operations as recorded by [FakeStore].
const (
	OpSelect = "select"
	OpInsert = "insert"
	OpDelete = "delete"
)

// StoreCall is one request received by a [FakeStore].
type StoreCall struct {
	Op         string
	Collection store.Collection
	Query      store.Query
	Row        store.Row
}

// Matches reports whether the call filters on column = value.
func (c StoreCall) Matches(column string, value any) bool {
	for _, cond := range c.Query.Where {
		if cond.Column == column && cond.Value == value {
			return true
		}
	}
	return c.Row != nil && c.Row[column] == value
}

// FakeStore is an in-memory [store.Store] that records every call.
//
// Primary keys are enforced per collection and reported with the unique
// violation code. Foreign keys are only checked when EnforceForeignKeys is set.
// Hook, when set, runs before each call; a non-nil error fails the call
// without touching the data, and blocking in Hook holds the call open. The
// fake ignores ctx otherwise, so a hook decides how cancellation looks.
type FakeStore struct {
	EnforceForeignKeys bool
	Hook               func(ctx context.Context, call StoreCall) error

	mu    sync.Mutex
	rows  map[store.Collection][]store.Row
	calls []StoreCall
	fails map[string][]error
}

// NewFakeStore returns an empty [FakeStore].
func NewFakeStore() *FakeStore {
	return &FakeStore{
		rows:  make(map[store.Collection][]store.Row),
		fails: make(map[string][]error),
	}
}

var primaryKeys = map[store.Collection][]string{
	store.Movies:           {"id"},
	store.WatchlistEntries: {"user_id", "movie_id"},
	store.Reviews:          {"id"},
	store.ReviewVotes:      {"review_id", "user_id"},
}

var foreignKeys = map[store.Collection]struct {
	column string
	ref    store.Collection
}{
	store.WatchlistEntries: {"movie_id", store.Movies},
	store.Reviews:          {"movie_id", store.Movies},
	store.ReviewVotes:      {"review_id", store.Reviews},
}

// Seed adds rows without recording calls or checking constraints.
func (f *FakeStore) Seed(c store.Collection, rows ...store.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		f.rows[c] = append(f.rows[c], maps.Clone(r))
	}
}

// FailNext queues err for the next call of op. Queued errors are consumed in order.
func (f *FakeStore) FailNext(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[op] = append(f.fails[op], errs...)
}

// Calls returns every recorded call, oldest first.
func (f *FakeStore) Calls() []StoreCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallCount returns how many calls of op were made.
func (f *FakeStore) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Rows returns a copy of the stored rows of c.
func (f *FakeStore) Rows(c store.Collection) []store.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Row, len(f.rows[c]))
	for i, r := range f.rows[c] {
		out[i] = maps.Clone(r)
	}
	return out
}

func (f *FakeStore) begin(ctx context.Context, call StoreCall) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	var queued error
	if errs := f.fails[call.Op]; len(errs) > 0 {
		queued = errs[0]
		f.fails[call.Op] = errs[1:]
	}
	hook := f.Hook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return err
		}
	}
	return queued
}

func (f *FakeStore) Select(ctx context.Context, c store.Collection, q store.Query) ([]store.Row, error) {
	if err := q.Validate(c); err != nil {
		return nil, err
	}
	if err := f.begin(ctx, StoreCall{Op: OpSelect, Collection: c, Query: q}); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []store.Row
	for _, r := range f.rows[c] {
		if matches(r, q.Where) {
			out = append(out, maps.Clone(r))
		}
	}
	if q.Order != nil {
		col, desc := q.Order.Column, q.Order.Descending
		slices.SortStableFunc(out, func(a, b store.Row) int {
			cmp := compare(a[col], b[col])
			if desc {
				return -cmp
			}
			return cmp
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *FakeStore) Insert(ctx context.Context, c store.Collection, rec store.Row) error {
	if err := store.ValidateRow(c, rec); err != nil {
		return err
	}
	if err := f.begin(ctx, StoreCall{Op: OpInsert, Collection: c, Row: maps.Clone(rec)}); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := primaryKeys[c]
	for _, r := range f.rows[c] {
		same := true
		for _, col := range key {
			if fmt.Sprint(r[col]) != fmt.Sprint(rec[col]) {
				same = false
				break
			}
		}
		if same {
			return store.NewError(store.CodeUniqueViolation, fmt.Sprintf("duplicate key value violates unique constraint on %s", c))
		}
	}

	if fk, ok := foreignKeys[c]; ok && f.EnforceForeignKeys {
		found := false
		for _, r := range f.rows[fk.ref] {
			if fmt.Sprint(r["id"]) == fmt.Sprint(rec[fk.column]) {
				found = true
				break
			}
		}
		if !found {
			return store.NewError(store.CodeForeignKeyViolation, fmt.Sprintf("insert on %s violates foreign key on %s", c, fk.column))
		}
	}

	f.rows[c] = append(f.rows[c], maps.Clone(rec))
	return nil
}

func (f *FakeStore) Delete(ctx context.Context, c store.Collection, q store.Query) error {
	if err := q.Validate(c); err != nil {
		return err
	}
	if err := f.begin(ctx, StoreCall{Op: OpDelete, Collection: c, Query: q}); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.rows[c] = slices.DeleteFunc(f.rows[c], func(r store.Row) bool { return matches(r, q.Where) })
	return nil
}

func matches(r store.Row, conds []store.Cond) bool {
	for _, cond := range conds {
		if fmt.Sprint(r[cond.Column]) != fmt.Sprint(cond.Value) {
			return false
		}
	}
	return true
}

func compare(a, b any) int {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case int:
		if y, ok := b.(int); ok {
			return x - y
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
