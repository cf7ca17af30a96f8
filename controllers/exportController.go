package controllers

import (
	"time"

	"govdata-backend/database"
	"govdata-backend/middlewares"
	"govdata-backend/models"
	"govdata-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// ExportCallLogs enumerates call log entries by tenant/service/time-range for
// offline export. Entries are immutable once written, so pagination over
// fetched_at is stable. Tenant callers only see their own tenant.
func ExportCallLogs(c *fiber.Ctx) error {
	caller, ok := middlewares.CallerFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
	}

	q := database.DB.Model(&models.CallLogEntry{})

	tenantID := parseUintQuery(c.Query("tenant_id"))
	if !caller.IsManagement() {
		tenantID = caller.TenantRef()
	}
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	if slug := c.Query("service"); slug != "" {
		q = q.Where("service_slug = ?", slug)
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			q = q.Where("fetched_at >= ?", t)
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			q = q.Where("fetched_at < ?", t)
		}
	}

	limit := utils.ParseIntDefault(c.Query("limit"), 500)
	if limit > 5000 {
		limit = 5000
	}
	offset := utils.ParseIntDefault(c.Query("offset"), 0)

	var entries []models.CallLogEntry
	if err := q.Order("fetched_at").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "export query failed")
	}
	return c.JSON(fiber.Map{
		"count":   len(entries),
		"entries": entries,
	})
}
