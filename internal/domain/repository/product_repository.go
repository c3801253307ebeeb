package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ProductRepository puerto de lectura del catálogo (colaborador externo del libro).
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// MissingIDs devuelve los ids que no existen en el catálogo, en el orden recibido.
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}
