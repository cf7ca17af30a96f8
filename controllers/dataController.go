package controllers

import (
	"strconv"

	"govdata-backend/middlewares"

	"github.com/gofiber/fiber/v2"
)

// FetchServiceData serves external data for one service, from cache when a
// valid entry exists. The request body is the raw parameter object forwarded
// to the upstream API; ?force_refresh=true bypasses the cache check.
func FetchServiceData(c *fiber.Ctx) error {
	slug := c.Params("service")
	if slug == "" {
		return c.Status(400).JSON(fiber.Map{"message": "missing service slug"})
	}

	var params map[string]any
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&params); err != nil {
			return c.Status(400).JSON(fiber.Map{"message": "invalid request body"})
		}
	}

	forceRefresh, _ := strconv.ParseBool(c.Query("force_refresh"))

	caller, ok := middlewares.CallerFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
	}

	result, err := gw.Fetch(c.UserContext(), slug, caller, params, forceRefresh)
	if err != nil {
		// Configuration and transport errors map to response codes in the
		// global error handler.
		return err
	}

	// Marker for the request counter.
	c.Locals(middlewares.CacheHitKey, result.Cached)

	if !result.OK {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message":         result.ErrorMessage,
			"code":            "upstream_error",
			"upstream_status": result.StatusCode,
		})
	}

	return c.JSON(result)
}
