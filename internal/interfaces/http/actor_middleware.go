package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Locals keys del request.
const (
	LocalUserID    = "user_id"
	LocalRequestID = "request_id"

	HeaderUserID = "X-User-ID"
)

// ActorMiddleware toma el usuario que origina el documento de X-User-ID (lo fija el gateway
// de la capa de flujo, que es quien autentica) y asigna un request id.
func ActorMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, c.Get(HeaderUserID))
		reqID := c.Get(fiber.HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals(LocalRequestID, reqID)
		c.Set(fiber.HeaderXRequestID, reqID)
		return c.Next()
	}
}

// GetUserID devuelve el usuario del request (vacío si no vino).
func GetUserID(c *fiber.Ctx) string {
	v := c.Locals(LocalUserID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetRequestID devuelve el id asignado por ActorMiddleware.
func GetRequestID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalRequestID).(string)
	return s
}
