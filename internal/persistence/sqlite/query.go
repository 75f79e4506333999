// SPDX-License-Identifier: MIT

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/seedlab/seedlab/internal/normalize"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Builder is the statement builder for list queries. SQLite takes '?' placeholders.
var Builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Like matches a folded search key column against free text.
func Like(column, text string) sq.Sqlizer {
	return sq.Expr(column+` LIKE ? ESCAPE '\'`, normalize.LikePattern(text))
}

// Count runs SELECT COUNT(*) over the FROM/WHERE of base.
func Count(ctx context.Context, q Querier, base sq.SelectBuilder) (int, error) {
	query, args, err := base.RemoveColumns().Column("COUNT(*)").RemoveLimit().RemoveOffset().ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Query builds and runs a select.
func Query(ctx context.Context, q Querier, b sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.QueryContext(ctx, query, args...)
}
