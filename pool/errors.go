package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strconv"
)

// ErrorKind is the coarse failure taxonomy attached to every failed span
// as the error.type attribute. Every error from a wrapped operation maps
// to exactly one kind before being re-surfaced unchanged to the caller.
type ErrorKind int

const (
	// ErrorKindClient covers malformed input: constraint violations,
	// syntax errors, decode failures, missing rows.
	ErrorKindClient ErrorKind = iota
	// ErrorKindServer covers backend-side failures, and is the default
	// for errors the classifier does not recognize.
	ErrorKindServer
	// ErrorKindConnection covers pool exhaustion, closed pools, and
	// network failures.
	ErrorKindConnection
	// ErrorKindTimeout covers deadline expiry and lock/busy timeouts.
	ErrorKindTimeout
	// ErrorKindOther covers failures outside the database path, such as
	// caller-initiated cancellation.
	ErrorKindOther
)

// String returns the stable error.type attribute value.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindClient:
		return "client_error"
	case ErrorKindServer:
		return "server_error"
	case ErrorKindConnection:
		return "connection_error"
	case ErrorKindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// sqlStater is satisfied by errors carrying a SQLSTATE code, notably
// *pgconn.PgError. Matched structurally so the core stays driver-free.
type sqlStater interface {
	SQLState() string
}

// resultCoder is satisfied by errors carrying a SQLite result code,
// notably the modernc.org/sqlite error type.
type resultCoder interface {
	Code() int
}

// Classify maps err to an ErrorKind plus the backend status code, when
// the backend provided one. It never modifies or wraps the error.
func Classify(err error) (ErrorKind, string) {
	switch {
	case errors.Is(err, ErrPoolClosed):
		return ErrorKindConnection, ""
	case errors.Is(err, ErrTxClosed):
		return ErrorKindClient, ""
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout, ""
	case errors.Is(err, context.Canceled):
		return ErrorKindOther, ""
	case errors.Is(err, sql.ErrNoRows):
		return ErrorKindClient, ""
	case errors.Is(err, driver.ErrBadConn):
		return ErrorKindConnection, ""
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorKindTimeout, ""
		}
		return ErrorKindConnection, ""
	}

	var stater sqlStater
	if errors.As(err, &stater) {
		return classifySQLState(stater.SQLState())
	}

	var coder resultCoder
	if errors.As(err, &coder) {
		return classifySQLiteCode(coder.Code())
	}

	return ErrorKindServer, ""
}

// classifySQLState maps a SQLSTATE code to the taxonomy by its class.
func classifySQLState(code string) (ErrorKind, string) {
	if len(code) < 2 {
		return ErrorKindServer, code
	}
	if code == "57014" { // query_canceled: statement timeout or cancel
		return ErrorKindTimeout, code
	}
	switch code[:2] {
	case "08": // connection exception
		return ErrorKindConnection, code
	case "22", "23", "26", "42": // data, integrity, statement name, syntax
		return ErrorKindClient, code
	default:
		return ErrorKindServer, code
	}
}

// classifySQLiteCode maps a primary SQLite result code to the taxonomy.
func classifySQLiteCode(code int) (ErrorKind, string) {
	status := strconv.Itoa(code)
	switch code & 0xff { // strip the extended-code high byte
	case 1, 19, 20, 25: // SQLITE_ERROR, CONSTRAINT, MISMATCH, RANGE
		return ErrorKindClient, status
	case 5, 6: // SQLITE_BUSY, SQLITE_LOCKED
		return ErrorKindTimeout, status
	case 10, 14: // SQLITE_IOERR, SQLITE_CANTOPEN
		return ErrorKindConnection, status
	default:
		return ErrorKindServer, status
	}
}
