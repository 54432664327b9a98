package sqlite

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func constraintCode(err error) (int, bool) {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return 0, false
	}
	return sqliteErr.Code(), true
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := constraintCode(err); ok && code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// isUniqueViolation covers both UNIQUE indexes and duplicate primary keys.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := constraintCode(err); ok &&
		(code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
