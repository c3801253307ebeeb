package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound                = errors.New("recurso no encontrado")
	ErrInvalidInput            = errors.New("entrada inválida")
	ErrConflict                = errors.New("conflicto con el estado actual")
	ErrInsufficientStock       = errors.New("stock insuficiente")
	ErrDuplicateReference      = errors.New("referencia de documento duplicada")
	ErrBusy                    = errors.New("recurso ocupado, reintente")
	ErrBalanceNotFound         = errors.New("saldo de inventario inexistente")
	ErrReversalExceedsOriginal = errors.New("la reversión excede la cantidad pendiente")
)

// ValidationError describe una entrada rechazada antes de tomar cualquier bloqueo.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("entrada inválida: %s", e.Reason)
	}
	return fmt.Sprintf("entrada inválida: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid construye un ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientStockError se devuelve cuando una salida dejaría el saldo en negativo.
type InsufficientStockError struct {
	ProductID string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para producto %s: disponible %s, solicitado %s",
		e.ProductID, e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// DuplicateReferenceError indica que el documento ya tiene movimientos registrados.
// MovementIDs lleva los movimientos existentes cuando se conocen.
type DuplicateReferenceError struct {
	ReferenceType string
	ReferenceID   string
	MovementIDs   []string
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("el documento %s/%s ya fue aplicado", e.ReferenceType, e.ReferenceID)
}

func (e *DuplicateReferenceError) Unwrap() error { return ErrDuplicateReference }

// BalanceNotFoundError: salida contra un producto que nunca tuvo entradas.
// Es un problema de integridad aguas arriba, no se asume saldo cero.
type BalanceNotFoundError struct {
	ProductID string
}

func (e *BalanceNotFoundError) Error() string {
	return fmt.Sprintf("no existe saldo de inventario para el producto %s", e.ProductID)
}

func (e *BalanceNotFoundError) Unwrap() []error { return []error{ErrBalanceNotFound, ErrNotFound} }

// IsRetryable indica si el caller puede reintentar el documento completo.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}
