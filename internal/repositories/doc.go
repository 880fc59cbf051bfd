// Package repositories implements the remote store contract on top of database/sql.
//
// The same [SQLStore] serves a local SQLite file and a PostgreSQL database, so the
// client can run without the hosted backend. Queries are built from whitelisted
// collections and columns only.
//
// Key Implementations:
//   - [SQLStore] : [store.Store] over SQLite (`?` placeholders) or PostgreSQL (`$n` placeholders)
//   - [RunMigrations] : embedded goose migrations for both dialects, including the seed catalog
//
// Driver errors are translated to the store's codes: a SQLite unique or primary key
// constraint becomes 23505, a SQLite foreign key constraint becomes 23503, and
// PostgreSQL SQLSTATE codes pass through unchanged.
package repositories
