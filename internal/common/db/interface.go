package db

import "context"

// Database is the SQL surface the failure index depends on.
type Database interface {
	Querier

	// Transaction runs fn inside a transaction, rolling back if fn fails.
	Transaction(ctx context.Context, fn func(tx Querier) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Querier abstracts statements shared by a database and a transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Rows is an iterator over query results. Callers must Close it.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is the result of QueryRow.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
