package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger    StockLedger
	Entries   StockEntries
	Queries   LedgerQueries
	Reconcile Reconciler
	Products  ProductCatalog
	Log       zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", ActorMiddleware())

	products := api.Group("/products")
	productHandler := NewProductHandler(deps.Products, deps.Log)
	products.Post("/", productHandler.Create)
	products.Get("/:id", productHandler.GetByID)

	stock := api.Group("/stock")
	h := NewStockHandler(deps.Ledger, deps.Entries, deps.Queries, deps.Reconcile, deps.Log)
	stock.Post("/movements", h.ApplyMovement)
	stock.Post("/reversals", h.ReverseMovement)
	stock.Post("/entries", h.CreateEntry)
	stock.Get("/balances/:product_id", h.GetBalance)
	stock.Get("/products/:product_id/movements", h.ListByProduct)
	stock.Get("/references/:reference_type/:reference_id/movements", h.ListByReference)
	stock.Get("/reconciliation", h.ReconcileAll)
	stock.Get("/reconciliation/:product_id", h.Reconcile)
}
