// Package repo is the PostgreSQL persistence layer: row models, repositories
// bound to a DBTX (either *sql.DB or *sql.Tx), a Manager vending them, and
// the embedded goose migrations.
package repo
