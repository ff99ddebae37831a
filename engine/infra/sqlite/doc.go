// Package sqlite provides the modernc.org/sqlite backed workflow repository.
//
// The package mirrors the postgres driver layout while supplying SQLite specific
// connection management and migrations. It is the default store for single
// node deployments and the CLI.
package sqlite
