package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned by point lookups that matched no row and by updates
// that affected no row.
var ErrNotFound = errors.New("not found")

// uniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505). Callers translate it into their own duplicate
// sentinel so services can treat "another writer won" as a normal outcome.
func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
