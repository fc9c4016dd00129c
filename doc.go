// Package stmtgroup holds the error types shared by the statement group
// packages.
//
// A logical mutation of an entity mapped across several tables (a primary
// table plus secondary tables, or a joined inheritance hierarchy) is carried
// out by a group of prepared statements, one per table. The mutation package
// owns that group: it orders the statements so foreign keys hold at every
// step, prepares each statement lazily on first use, routes identity inserts
// through a delegate able to read back the generated key, and releases every
// prepared statement exactly once.
//
// # Packages
//
//   - model: operations, table mappings, expectations and mutation targets
//   - mutation: statement handles, groups and the executor
//   - session: the unit of work statements are prepared and released through
//   - dialect/sql: database/sql backed drivers, statistics and debug logging
//   - builder: renders per-table operations with squirrel
//
// # Usage
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tx, err := drv.Tx(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s := session.New(tx, session.WithLogger(logger))
//	g, err := mutation.NewStandardGroup(model.Insert, target, ops, s)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := mutation.NewExecutor(s).Execute(ctx, g, model.Values{"id": 1, "name": "a"})
package stmtgroup
