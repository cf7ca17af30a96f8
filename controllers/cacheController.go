package controllers

import (
	"govdata-backend/middlewares"

	"github.com/gofiber/fiber/v2"
)

// ClearCache hard-invalidates cached responses. Management callers may clear
// across tenants via query filters; tenant callers are pinned to their own
// tenant.
func ClearCache(c *fiber.Ctx) error {
	caller, ok := middlewares.CallerFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
	}

	userID := parseUintQuery(c.Query("user_id"))
	tenantID := parseUintQuery(c.Query("tenant_id"))
	serviceID := parseUintQuery(c.Query("service_id"))

	if !caller.IsManagement() {
		tenantID = caller.TenantRef()
	}

	count, err := cacheStore.ClearFor(c.UserContext(), userID, tenantID, serviceID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "cache clear failed")
	}
	return c.JSON(fiber.Map{"deleted": count})
}

// SweepCache removes every expired cache row. Management only.
func SweepCache(c *fiber.Ctx) error {
	caller, ok := middlewares.CallerFromCtx(c)
	if !ok || !caller.IsManagement() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "management access required"})
	}

	count, err := cacheStore.SweepExpired(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "cache sweep failed")
	}
	return c.JSON(fiber.Map{"deleted": count})
}
