package helper

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	// SQLite reports constraints by message only once GORM has wrapped them.
	sqliteUniqueMessage     = "UNIQUE constraint failed"
	sqliteForeignKeyMessage = "FOREIGN KEY constraint failed"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsUniqueViolation covers pgx, lib/pq, SQLite and GORM-translated driver errors.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return pgCode(err) == pgUniqueViolation || strings.Contains(err.Error(), sqliteUniqueMessage)
}

// IsForeignKeyViolation covers pgx, lib/pq, SQLite and GORM-translated driver errors.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return pgCode(err) == pgForeignKeyViolation || strings.Contains(err.Error(), sqliteForeignKeyMessage)
}
