package middlewares

import (
	"errors"

	"govdata-backend/gateway"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// NewErrorHandler centralizes error responses and keeps messages sanitized.
func NewErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// 1) Fiber errors (use their status code + message)
		if fe, ok := err.(*fiber.Error); ok {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}

		// 2) Validation errors (422 + per-field info)
		if ve, ok := err.(validator.ValidationErrors); ok {
			out := make(map[string]string, len(ve))
			for _, fe := range ve {
				// fe.Field() is struct field name; you can map to json tag if you prefer
				out[fe.Field()] = fe.Tag()
			}
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"message": "validation failed",
				"errors":  out,
			})
		}

		// 3) Gateway failure modes, each with its own client-visible code
		switch {
		case errors.Is(err, gateway.ErrNoCredential):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "no API credential configured for this service",
				"code":    "configuration_error",
			})
		case errors.Is(err, gateway.ErrUnknownService):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "unknown service",
				"code":    "unknown_service",
			})
		case errors.Is(err, gateway.ErrUpstreamTimeout):
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"message": "upstream service timed out",
				"code":    "upstream_timeout",
			})
		}
		var transport *gateway.UpstreamTransportError
		if errors.As(err, &transport) {
			log.Warn("upstream transport failure", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"message": "upstream service unreachable",
				"code":    "upstream_unreachable",
			})
		}

		// 4) Unknown errors (500)
		log.Error("internal error", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}
}
