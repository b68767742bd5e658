package store

import (
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql name of the pure Go SQLite driver.
const DriverName = "sqlite"
