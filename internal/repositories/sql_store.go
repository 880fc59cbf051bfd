package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/desertthunder/marquee/internal/store"
)

// SQLStore implements [store.Store] over a database/sql connection.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

// NewSQLStore creates a new [SQLStore]. A nil logger discards debug output.
func NewSQLStore(db *sql.DB, dialect Dialect, logger *log.Logger) *SQLStore {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &SQLStore{db: db, dialect: dialect, logger: logger}
}

// DB returns the underlying connection.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Select returns every row of c matching q, with all whitelisted columns.
func (s *SQLStore) Select(ctx context.Context, c store.Collection, q store.Query) ([]store.Row, error) {
	if err := q.Validate(c); err != nil {
		return nil, err
	}

	cols := store.Columns[c]
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), c)

	args := s.where(&b, q.Where, 1)
	if q.Order != nil {
		fmt.Fprintf(&b, " ORDER BY %s", q.Order.Column)
		if q.Order.Descending {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}

	query := b.String()
	s.logger.Debug("select", "sql", query, "args", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err, "query "+string(c))
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c, err)
		}

		row := make(store.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, translateError(err, "iterate "+string(c))
	}
	return out, nil
}

// Insert writes one record. Columns left out of rec take their schema defaults.
func (s *SQLStore) Insert(ctx context.Context, c store.Collection, rec store.Row) error {
	if err := store.ValidateRow(c, rec); err != nil {
		return err
	}

	cols := make([]string, 0, len(rec))
	for col := range rec {
		cols = append(cols, col)
	}
	slices.Sort(cols)

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = s.placeholder(i + 1)
		args[i] = rec[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", c, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	s.logger.Debug("insert", "sql", query)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return translateError(err, "insert into "+string(c))
	}
	return nil
}

// Delete removes the rows matching q. An unfiltered delete is refused.
func (s *SQLStore) Delete(ctx context.Context, c store.Collection, q store.Query) error {
	if err := q.Validate(c); err != nil {
		return err
	}
	if len(q.Where) == 0 {
		return fmt.Errorf("%w: delete from %s requires a filter", store.ErrInvalidQuery, c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s", c)
	args := s.where(&b, q.Where, 1)

	query := b.String()
	s.logger.Debug("delete", "sql", query)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateError(err, "delete from "+string(c))
	}
	if n, err := result.RowsAffected(); err == nil {
		s.logger.Debug("deleted", "collection", c, "rows", n)
	}
	return nil
}

func (s *SQLStore) where(b *strings.Builder, conds []store.Cond, start int) []any {
	args := make([]any, 0, len(conds))
	for i, cond := range conds {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(b, "%s = %s", cond.Column, s.placeholder(start+i))
		args = append(args, cond.Value)
	}
	return args
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// translateError maps driver errors onto [store.Error] codes. Context errors pass through.
func translateError(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &store.Error{Code: store.CodeUniqueViolation, Message: sqliteErr.Error(), Err: err}
		case sqlite3.ErrConstraintForeignKey:
			return &store.Error{Code: store.CodeForeignKeyViolation, Message: sqliteErr.Error(), Err: err}
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &store.Error{Code: pgErr.Code, Message: pgErr.Message, Err: err}
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}
