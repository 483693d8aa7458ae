package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/nursesim/internal/models"
)

// classify wraps connectivity failures in models.ErrStoreUnavailable and
// uniqueness violations in models.ErrInvalidInput. Other errors pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isUnavailable(err):
		return fmt.Errorf("%s: %w: %v", op, models.ErrStoreUnavailable, err)
	case isDuplicate(err):
		return fmt.Errorf("%s: %w: duplicate key", op, models.ErrInvalidInput)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr:
			return true
		}
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		// Too many connections, lost connection, server gone away.
		switch mysqlErr.Number {
		case 1040, 2006, 2013:
			return true
		}
	}
	return false
}

func isDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
