package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Position cantidad y costo promedio de un producto antes o después de un movimiento.
type Position struct {
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
}

// Movement entrada del motor de costeo.
//
// Reversal cambia la regla de costo:
//   - IN de reversión (se anula una salida): la cantidad vuelve al costo promedio actual.
//   - OUT de reversión (se anula una entrada): se deshace el promedio al costo original (UnitCost).
type Movement struct {
	ProductID string
	Direction entity.Direction
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	Reversal  bool
}

// Result nueva posición y costo unitario atribuido al movimiento.
type Result struct {
	Position
	UnitCost decimal.Decimal
}

// CostCalculator implementa la lógica de costo promedio ponderado (servicio de dominio).
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
func CostCalculator(stockActual, costoActual, cantEntrada, costoEntrada decimal.Decimal) decimal.Decimal {
	sum := stockActual.Add(cantEntrada)
	if sum.LessThanOrEqual(decimal.Zero) {
		return costoEntrada
	}
	num := stockActual.Mul(costoActual).Add(cantEntrada.Mul(costoEntrada))
	return num.Div(sum)
}

// Apply calcula la nueva posición. No hace I/O ni muta current.
// Si la cantidad resultante fuese negativa devuelve *domain.InsufficientStockError.
func Apply(current Position, mv Movement) (Result, error) {
	if !mv.Quantity.GreaterThan(decimal.Zero) {
		return Result{}, domain.Invalid("quantity", "debe ser mayor que cero")
	}
	switch mv.Direction {
	case entity.DirectionIn:
		return applyIn(current, mv), nil
	case entity.DirectionOut:
		return applyOut(current, mv)
	}
	return Result{}, domain.Invalid("direction", "sentido desconocido")
}

func applyIn(current Position, mv Movement) Result {
	newQty := current.Quantity.Add(mv.Quantity)
	if mv.Reversal {
		return Result{
			Position: Position{Quantity: newQty, AverageCost: current.AverageCost},
			UnitCost: current.AverageCost,
		}
	}
	return Result{
		Position: Position{
			Quantity:    newQty,
			AverageCost: CostCalculator(current.Quantity, current.AverageCost, mv.Quantity, mv.UnitCost),
		},
		UnitCost: mv.UnitCost,
	}
}

func applyOut(current Position, mv Movement) (Result, error) {
	newQty := current.Quantity.Sub(mv.Quantity)
	if newQty.LessThan(decimal.Zero) {
		return Result{}, &domain.InsufficientStockError{
			ProductID: mv.ProductID,
			Available: current.Quantity,
			Requested: mv.Quantity,
		}
	}
	if !mv.Reversal {
		return Result{
			Position: Position{Quantity: newQty, AverageCost: current.AverageCost},
			UnitCost: current.AverageCost,
		}, nil
	}
	// Deshacer una entrada: fórmula del promedio con cantidad negativa.
	avg := current.AverageCost
	if newQty.GreaterThan(decimal.Zero) {
		avg = current.Quantity.Mul(current.AverageCost).Sub(mv.Quantity.Mul(mv.UnitCost)).Div(newQty)
		if avg.LessThan(decimal.Zero) {
			avg = decimal.Zero
		}
	}
	return Result{
		Position: Position{Quantity: newQty, AverageCost: avg},
		UnitCost: mv.UnitCost,
	}, nil
}
