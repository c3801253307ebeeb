package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ProductStore persistencia del catálogo que necesita el caso de uso.
type ProductStore interface {
	Create(ctx context.Context, p *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}

// ProductUseCase alta y consulta del catálogo. Cantidad y costo promedio viven en el libro,
// no en el producto.
type ProductUseCase struct {
	repo ProductStore
	now  func() time.Time
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(repo ProductStore) *ProductUseCase {
	return &ProductUseCase{repo: repo, now: time.Now}
}

// Create crea un nuevo producto. DefaultCost solo sirve para prellenar formularios.
func (uc *ProductUseCase) Create(ctx context.Context, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	if in.DefaultCost.LessThan(decimal.Zero) {
		return nil, domain.Invalid("default_cost", "no puede ser negativo")
	}
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := uc.now()
	product := &entity.Product{
		ID:          id,
		SKU:         in.SKU,
		Name:        in.Name,
		DefaultCost: in.DefaultCost,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return toProductResponse(product), nil
}

// GetByID obtiene un producto por ID.
func (uc *ProductUseCase) GetByID(ctx context.Context, id string) (*dto.ProductResponse, error) {
	if id == "" {
		return nil, domain.Invalid("id", "requerido")
	}
	product, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("producto %s: %w", id, domain.ErrNotFound)
	}
	return toProductResponse(product), nil
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		DefaultCost: p.DefaultCost,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
