package internal

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/lychee-technology/foundry"
)

// DBConn is the subset of pgxpool.Pool the connector depends on.
// pgxmock pools satisfy it in tests.
type DBConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier runs a query either directly on the pool or inside a
// transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connector executes generated statements against PostgreSQL, binding
// the named argument map through pgx.NamedArgs.
type Connector struct {
	db DBConn
}

func NewConnector(db DBConn) *Connector {
	return &Connector{db: db}
}

// Begin opens a transaction for batch execution
func (c *Connector) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return nil, foundry.NewTransactionError("failed to begin transaction", err)
	}
	return tx, nil
}

// Execute runs a statement and collects every row as a column-keyed
// map. Write statements carry RETURNING, so everything goes through
// Query.
func (c *Connector) Execute(ctx context.Context, q querier, stmt *Statement) ([]map[string]any, error) {
	if q == nil {
		q = c.db
	}
	zap.S().Debugw("executing statement", "sql", stmt.SQL, "params", len(stmt.Args))

	rows, err := q.Query(ctx, stmt.SQL, pgx.NamedArgs(stmt.Args))
	if err != nil {
		return nil, foundry.NewQueryExecutionError("query failed", err)
	}
	defer rows.Close()

	var out []map[string]any
	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, foundry.NewQueryExecutionError("failed to read row", err)
		}
		row := make(map[string]any, len(fields))
		for i, field := range fields {
			row[string(field.Name)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, foundry.NewQueryExecutionError("row iteration failed", err)
	}
	return out, nil
}
