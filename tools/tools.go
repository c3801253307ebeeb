//go:build tools

// Package tools fija en go.mod las herramientas que usa `go generate`.
package tools

import (
	_ "github.com/swaggo/swag/cmd/swag"
)
