// Package sql provides the database/sql implementation of the dialect
// interfaces, plus wrapper drivers that observe statement traffic.
//
// # Drivers
//
// Open and OpenDB return a *Driver executing through a *sql.DB. Tx returns a
// transaction with the same surface. Both implement dialect.Preparer:
//
//	drv, err := sql.Open("sqlite", "file:app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stmt, err := drv.Prepare(ctx, "INSERT INTO entities (id, name) VALUES (?, ?)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stmt.Close()
//	_, err = stmt.ExecContext(ctx, 1, "name")
//
// # Statistics
//
// StatsDriver counts queries, executions, prepares and closes. The number
// of statements prepared but never closed is reported by
// StatsSnapshot.OpenStatements and is the first thing to check when
// hunting statement leaks:
//
//	statsDriver := sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond))
//	reg.MustRegister(sql.NewStatsCollector("stmtgroup", statsDriver.QueryStats()))
//
// # Debugging
//
// DebugDriver logs every prepare, exec and query through log/slog at
// debug level, or through a custom function given with DebugWithLog.
package sql
