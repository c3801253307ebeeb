package http

import (
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
)

// DocsPath ruta de la UI de Swagger.
const DocsPath = "docs"

// MountDocs sirve la UI de Swagger en /docs a partir del spec generado con `go generate ./cmd/api`.
// Devuelve false sin montar nada si el archivo no existe (swagger.New entra en panic sin él).
func MountDocs(app *fiber.App, specFile string) bool {
	if specFile == "" {
		return false
	}
	if _, err := os.Stat(specFile); err != nil {
		return false
	}
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: specFile,
		Path:     DocsPath,
		Title:    "Stock Ledger API",
	}))
	return true
}
