package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind classifies a storage failure.
type Kind int

const (
	Internal Kind = iota
	Conflict
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Conflict:
		return "conflict"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// PersistenceError is the only error type the gateway returns.
type PersistenceError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsKind reports whether err is a PersistenceError of kind k.
func IsKind(err error, k Kind) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Kind == k
}

// Classify maps a driver error onto the persistence taxonomy.
// Integrity violations (SQLSTATE class 23) are conflicts; anything that
// says the database could not be reached in time is unavailable.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Kind: kindOf(err), Op: op, Err: err}
}

func kindOf(err error) Kind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return Conflict
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "53300":
			// connection exception, admin shutdown, too many connections
			return Unavailable
		case pgErr.Code == "57014":
			// statement timeout
			return Unavailable
		}
		return Internal
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return Conflict
	}
	if isConnectionError(err) {
		return Unavailable
	}
	return Internal
}

// isConnectionError covers failures that happen before a statement reaches
// the server, which is what makes them safe to retry.
func isConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.Timeout(err)
}
