package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	t.Run("builder does not alias conditions", func(t *testing.T) {
		base := Where("user_id", "u1")
		a := base.And("movie_id", "m1")
		b := base.And("movie_id", "m2")

		require.Len(t, base.Where, 1)
		assert.Equal(t, "m1", a.Where[1].Value)
		assert.Equal(t, "m2", b.Where[1].Value)
	})

	t.Run("validate accepts known columns", func(t *testing.T) {
		q := Where("user_id", "u1").OrderBy("created_at", true).WithLimit(10)
		assert.NoError(t, q.Validate(WatchlistEntries))
	})

	t.Run("validate rejects unknown column", func(t *testing.T) {
		err := Where("password", "x").Validate(WatchlistEntries)
		assert.ErrorIs(t, err, ErrUnknownColumn)
	})

	t.Run("validate rejects unknown order column", func(t *testing.T) {
		err := Query{}.OrderBy("popularity", true).Validate(Movies)
		assert.ErrorIs(t, err, ErrUnknownColumn)
	})

	t.Run("validate rejects unknown collection", func(t *testing.T) {
		err := Where("id", "1").Validate(Collection("users"))
		assert.ErrorIs(t, err, ErrUnknownCollection)
	})

	t.Run("validate rejects negative limit", func(t *testing.T) {
		err := Query{}.WithLimit(-1).Validate(Movies)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})

	t.Run("validate row", func(t *testing.T) {
		assert.NoError(t, ValidateRow(WatchlistEntries, Row{"user_id": "u1", "movie_id": "m1"}))
		assert.ErrorIs(t, ValidateRow(WatchlistEntries, Row{}), ErrInvalidQuery)
		assert.ErrorIs(t, ValidateRow(WatchlistEntries, Row{"role": "admin"}), ErrUnknownColumn)
	})
}

func TestKindOf(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"unique", NewError(CodeUniqueViolation, "duplicate key"), KindUniqueViolation},
		{"foreign key", NewError(CodeForeignKeyViolation, "violates fk"), KindForeignKeyViolation},
		{"stale read", NewError(CodeStaleRead, "stale"), KindStaleRead},
		{"unauthorized", NewError(CodeUnauthorized, "jwt expired"), KindUnauthorized},
		{"network", NewError(CodeNetwork, "dial tcp"), KindNetwork},
		{"other code", NewError("42P01", "relation does not exist"), KindUnknown},
		{"wrapped", fmt.Errorf("insert: %w", NewError(CodeUniqueViolation, "dup")), KindUniqueViolation},
		{"plain error", errors.New("boom"), KindUnknown},
		{"canceled", context.Canceled, KindCanceled},
		{"deadline", fmt.Errorf("select: %w", context.DeadlineExceeded), KindCanceled},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError(t *testing.T) {
	inner := errors.New("connection refused")
	err := &Error{Code: CodeNetwork, Message: "request failed", Err: inner}

	assert.Equal(t, "request failed (code NETWORK)", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "plain", (&Error{Message: "plain"}).Error())
	assert.Equal(t, "unique_violation", KindUniqueViolation.String())
}

func TestRow(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	row := Row{
		"s_string": "m1",
		"s_bytes":  []byte("m2"),
		"i_int64":  int64(142),
		"i_float":  float64(7),
		"i_string": "12",
		"f_float":  4.8,
		"f_int64":  int64(5),
		"f_bytes":  []byte("4.5"),
		"t_time":   ts,
		"t_string": "2024-05-01T12:30:00Z",
		"t_sqlite": "2024-05-01 12:30:00",
		"null":     nil,
	}

	assert.Equal(t, "m1", row.String("s_string"))
	assert.Equal(t, "m2", row.String("s_bytes"))
	assert.Equal(t, "142", row.String("i_int64"))
	assert.Equal(t, "", row.String("null"))
	assert.Equal(t, "", row.String("missing"))

	assert.Equal(t, 142, row.Int("i_int64"))
	assert.Equal(t, 7, row.Int("i_float"))
	assert.Equal(t, 12, row.Int("i_string"))
	assert.Equal(t, 0, row.Int("null"))

	assert.InDelta(t, 4.8, row.Float("f_float"), 1e-9)
	assert.InDelta(t, 5.0, row.Float("f_int64"), 1e-9)
	assert.InDelta(t, 4.5, row.Float("f_bytes"), 1e-9)

	assert.True(t, ts.Equal(row.Time("t_time")))
	assert.True(t, ts.Equal(row.Time("t_string")))
	assert.True(t, ts.Equal(row.Time("t_sqlite")))
	assert.True(t, row.Time("null").IsZero())
}
