package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

const (
	codeUniqueViolation      = "23505"
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}
	return strings.Contains(err.Error(), codeUniqueViolation)
}

// isContention lock_timeout vencido, conflicto de serialización o deadlock: reintentables.
func isContention(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// mapTxError traduce la contención de PostgreSQL a domain.ErrBusy; el resto pasa intacto.
func mapTxError(err error) error {
	if err == nil || errors.Is(err, domain.ErrBusy) {
		return err
	}
	if isContention(err) {
		return fmt.Errorf("%w: %v", domain.ErrBusy, err)
	}
	return err
}

// nullIfEmpty guarda NULL en columnas opcionales de texto.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
