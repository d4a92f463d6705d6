// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// engine factories with the storage package and their DDL dialects with the
// schema package.
//
// Importing it makes these kinds available at runtime:
//
//   - "postgres"   (dbbench/internal/storage/postgres)
//   - "mysql"      (dbbench/internal/storage/mysql)
//   - "mssql"      (dbbench/internal/storage/mssql)
//   - "sqlite"     (dbbench/internal/storage/sqlite)
//   - "clickhouse" (dbbench/internal/storage/clickhouse)
//   - "mongodb"    (dbbench/internal/storage/mongodb)
//
// Typical usage (in cmd/dbbench or a similar wiring layer):
//
//	import _ "dbbench/internal/storage/all" // enable all built-in backends
//
//	eng, err := storage.New(ctx, storage.Config{Kind: e.Kind, Name: e.Name, DSN: e.DSN})
//
// A binary that supports only a subset of backends can define its own wiring
// package that imports just the required backends.
package all

import (
	_ "dbbench/internal/storage/clickhouse"
	_ "dbbench/internal/storage/mongodb"
	_ "dbbench/internal/storage/mssql"
	_ "dbbench/internal/storage/mysql"
	_ "dbbench/internal/storage/postgres"
	_ "dbbench/internal/storage/sqlite"
)
