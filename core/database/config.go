package database

// Config holds settings for the local sqlite state database.
type Config struct {
	// Path is the database file location. The file may be absent on first
	// run; its parent directory is created as needed.
	Path string
	// BusyTimeoutMS is applied via the sqlite busy_timeout pragma.
	BusyTimeoutMS int
	// MigrationsDir holds golang-migrate .sql files; empty defaults to "migrations".
	MigrationsDir string
}
