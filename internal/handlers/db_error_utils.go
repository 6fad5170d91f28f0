package handlers

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

const (
	mysqlErrDataTooLong      = 1406
	mysqlErrTruncatedValue   = 1366
	mysqlErrNoSuchTable      = 1146
	mysqlErrAccessDenied     = 1045
	mysqlErrBadDatabase      = 1049
	mysqlErrTooManyConnected = 1040
)

// dbErrorMessage returns a client-safe description of a MySQL/MariaDB
// failure, or fallback when the error carries nothing worth exposing.
func dbErrorMessage(err error, fallback string) string {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return fallback
	}
	switch mysqlErr.Number {
	case mysqlErrDataTooLong, mysqlErrTruncatedValue:
		return mysqlErr.Message
	case mysqlErrNoSuchTable, mysqlErrBadDatabase, mysqlErrAccessDenied:
		return "database is not set up"
	case mysqlErrTooManyConnected:
		return "database is busy, try again"
	}
	return fallback
}
