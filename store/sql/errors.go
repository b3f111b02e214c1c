package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/goliatone/go-hr-ingest/core"
)

// unavailableMarkers are driver messages for a database that cannot be reached
// or cannot take the write right now.
var unavailableMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"database is locked",
	"too many connections",
	"the database system is starting up",
	"the database system is shutting down",
	"server closed the connection",
}

// classifyError maps driver errors to the ingest taxonomy. Unique violations
// are conflicts; connectivity failures are unavailability; anything else is
// returned unchanged.
func classifyError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if kind := core.ErrorKindOf(err); kind == core.ErrorKindPersistenceConflict || kind == core.ErrorKindPersistenceUnavailable {
		return err
	}
	if isUniqueViolation(err) {
		return core.PersistenceConflictError("sqlstore: "+operation+": unique key already exists", map[string]any{
			"operation": operation,
		})
	}
	if isUnavailable(err) {
		return core.PersistenceUnavailableError(err, map[string]any{"operation": operation})
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, marker := range unavailableMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
