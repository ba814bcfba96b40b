package credentialsqlite

import (
	"errors"

	"modernc.org/sqlite"

	sqlite3 "modernc.org/sqlite/lib"

	"github.com/openkcm/oauth-server/internal/serviceerr"
)

func handleSQLiteError(err error) (error, bool) {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err, false
	}

	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return serviceerr.ErrConflict, true
	}

	return err, false
}
