package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"threatwatch/internal/domain"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// mapErr translates driver errors into the gateway's error taxonomy.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrConstraintViolation)
		case invalidTextRepresentation:
			// malformed uuid in a lookup
			return domain.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
