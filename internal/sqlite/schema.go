package sqlite

// Schema DDL and statements for a collection database. Each collection gets
// its own database file holding a single tuples table; key is the JSON
// encoding of the tuple's key columns.
const (
	createTuples = `CREATE TABLE IF NOT EXISTS tuples (
    key TEXT PRIMARY KEY,
    tuple TEXT NOT NULL
);`

	pragmaSynchronous = `PRAGMA synchronous = FULL;`

	upsertTuple = `INSERT INTO tuples (key, tuple) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET tuple = excluded.tuple;`

	selectTuple  = `SELECT tuple FROM tuples WHERE key = ?;`
	deleteTuple  = `DELETE FROM tuples WHERE key = ?;`
	selectTuples = `SELECT tuple FROM tuples ORDER BY rowid;`
)
