package controllers

import (
	"govdata-backend/analytics"
	"govdata-backend/middlewares"
	"govdata-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// filtersFromCtx builds aggregation filters from the query string, pinning
// tenant callers to their own tenant regardless of what they ask for.
func filtersFromCtx(c *fiber.Ctx) (analytics.Filters, error) {
	caller, ok := middlewares.CallerFromCtx(c)
	if !ok {
		return analytics.Filters{}, fiber.NewError(fiber.StatusUnauthorized, "auth context missing")
	}

	f := analytics.Filters{
		TenantID:  parseUintQuery(c.Query("tenant_id")),
		UserID:    parseUintQuery(c.Query("user_id")),
		ServiceID: parseUintQuery(c.Query("service_id")),
	}
	if !caller.IsManagement() {
		f.TenantID = caller.TenantRef()
	}
	return f, nil
}

func periodFromCtx(c *fiber.Ctx) string {
	switch p := c.Query("period", analytics.PeriodToday); p {
	case analytics.PeriodToday, analytics.PeriodWeek, analytics.PeriodMonth, analytics.PeriodAll:
		return p
	default:
		return analytics.PeriodToday
	}
}

func GetStats(c *fiber.Ctx) error {
	f, err := filtersFromCtx(c)
	if err != nil {
		return err
	}
	stats, err := aggregator.Stats(c.UserContext(), periodFromCtx(c), f)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "stats aggregation failed")
	}
	return c.JSON(stats)
}

func GetTopEndpoints(c *fiber.Ctx) error {
	f, err := filtersFromCtx(c)
	if err != nil {
		return err
	}
	limit := utils.ParseIntDefault(c.Query("limit"), 10)
	rows, err := aggregator.TopEndpoints(c.UserContext(), limit, periodFromCtx(c), f)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "endpoint aggregation failed")
	}
	return c.JSON(rows)
}

func GetTopUsers(c *fiber.Ctx) error {
	f, err := filtersFromCtx(c)
	if err != nil {
		return err
	}
	limit := utils.ParseIntDefault(c.Query("limit"), 10)
	rows, err := aggregator.TopUsers(c.UserContext(), limit, periodFromCtx(c), f)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "user aggregation failed")
	}
	return c.JSON(rows)
}

func GetServiceUsage(c *fiber.Ctx) error {
	f, err := filtersFromCtx(c)
	if err != nil {
		return err
	}
	rows, err := aggregator.ServiceUsage(c.UserContext(), periodFromCtx(c), f)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "service usage aggregation failed")
	}
	return c.JSON(rows)
}

func GetTimeline(c *fiber.Ctx) error {
	f, err := filtersFromCtx(c)
	if err != nil {
		return err
	}
	hours := utils.ParseIntDefault(c.Query("hours"), 24)
	buckets, err := aggregator.Timeline(c.UserContext(), hours, f.TenantID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "timeline aggregation failed")
	}
	return c.JSON(buckets)
}

func GetDashboard(c *fiber.Ctx) error {
	f, err := filtersFromCtx(c)
	if err != nil {
		return err
	}
	dashboard, err := aggregator.Dashboard(c.UserContext(), f.TenantID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "dashboard aggregation failed")
	}
	return c.JSON(dashboard)
}
