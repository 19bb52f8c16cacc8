// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
// Driver errors are translated with database.MapError: unique violations become core.ConflictError
// and connection failures core.TransientError.
package sqlxrepos

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// validIDs reports whether every id is a UUID. Postgres fails the whole statement on a malformed
// uuid literal, so lookups by such ids are answered as not found without a query.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

// onlyValidIDs drops the ids that are not UUIDs.
func onlyValidIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validIDs(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

// valuesPlaceholders returns "($1,$2),($3,$4)" for rows=2, cols=2.
func valuesPlaceholders(rows, cols int) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			_, _ = fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// in expands the IN (?) clauses of query and rebinds it for db.
func in(db *sqlx.DB, query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(query), args, nil
}
