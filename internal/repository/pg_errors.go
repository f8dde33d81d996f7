package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgreSQL error codes the repositories translate.
const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

// missingOnMalformedID turns a malformed UUID key into sql.ErrNoRows: no row can carry it.
func missingOnMalformedID(err error) error {
	if hasCode(err, invalidTextRepresentation) {
		return sql.ErrNoRows
	}
	return err
}
