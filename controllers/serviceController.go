package controllers

import (
	"govdata-backend/database"
	"govdata-backend/middlewares"
	"govdata-backend/models"
	"govdata-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type createServiceDTO struct {
	Slug            string   `json:"slug" validate:"required,min=2,max=64"`
	Name            string   `json:"name" validate:"required,min=2,max=128"`
	Endpoint        string   `json:"endpoint" validate:"required"`
	HTTPMethod      string   `json:"http_method" validate:"omitempty,oneof=GET POST"`
	CacheTTLSeconds int      `json:"cache_ttl_seconds" validate:"gte=0"`
	UnitPrice       *float64 `json:"unit_price" validate:"omitempty,gte=0"`
}

type updateServiceDTO struct {
	Name            *string  `json:"name"`
	Endpoint        *string  `json:"endpoint"`
	HTTPMethod      *string  `json:"http_method"`
	CacheTTLSeconds *int     `json:"cache_ttl_seconds"`
	UnitPrice       *float64 `json:"unit_price"`
	Active          *bool    `json:"active"`
}

type createCredentialDTO struct {
	TenantId *uint  `json:"tenant_id"`
	APIKey   string `json:"api_key" validate:"required,min=8"`
	Approved bool   `json:"approved"`
}

// CreateService registers a new upstream service. Management only.
func CreateService(c *fiber.Ctx) error {
	caller, ok := middlewares.CallerFromCtx(c)
	if !ok || !caller.IsManagement() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "management access required"})
	}

	var dto createServiceDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	method := dto.HTTPMethod
	if method == "" {
		method = fiber.MethodGet
	}

	service := models.Service{
		Slug:            dto.Slug,
		Name:            dto.Name,
		Endpoint:        dto.Endpoint,
		HTTPMethod:      method,
		CacheTTLSeconds: dto.CacheTTLSeconds,
		UnitPrice:       dto.UnitPrice,
		Active:          true,
	}
	if err := database.DB.Create(&service).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not create service",
			"error":   err.Error(),
		})
	}
	return c.JSON(service)
}

// GetServices lists registered services.
func GetServices(c *fiber.Ctx) error {
	var services []models.Service
	if err := database.DB.Order("slug").Find(&services).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not list services")
	}
	return c.JSON(services)
}

// UpdateService applies a partial update from a pointer DTO; only fields
// present in the request are touched. Management only.
func UpdateService(c *fiber.Ctx) error {
	caller, ok := middlewares.CallerFromCtx(c)
	if !ok || !caller.IsManagement() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "management access required"})
	}

	id := utils.ParseIntDefault(c.Params("id"), -1)
	if id < 0 {
		return c.Status(400).JSON(fiber.Map{"message": "invalid service id"})
	}

	var dto updateServiceDTO
	if err := c.BodyParser(&dto); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizePtrDTO(&dto)

	updates := utils.UpdatesFromPtrDTO(&dto, nil)
	if len(updates) == 0 {
		return c.Status(400).JSON(fiber.Map{"message": "no fields to update"})
	}

	res := database.DB.Model(&models.Service{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not update service",
			"error":   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "service not found"})
	}

	var service models.Service
	database.DB.First(&service, id)
	return c.JSON(service)
}

// CreateCredential provisions an upstream API key for a service, either
// tenant-specific or system-wide (tenant_id absent). Management only.
func CreateCredential(c *fiber.Ctx) error {
	caller, ok := middlewares.CallerFromCtx(c)
	if !ok || !caller.IsManagement() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "management access required"})
	}

	serviceID := utils.ParseIntDefault(c.Params("id"), -1)
	if serviceID < 0 {
		return c.Status(400).JSON(fiber.Map{"message": "invalid service id"})
	}

	var dto createCredentialDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	var service models.Service
	if err := database.DB.First(&service, serviceID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "service not found"})
	}

	cred := models.ServiceCredential{
		ServiceId: service.Id,
		TenantId:  dto.TenantId,
		APIKey:    dto.APIKey,
		Approved:  dto.Approved,
	}
	if err := database.DB.Create(&cred).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not create credential",
			"error":   err.Error(),
		})
	}
	return c.JSON(cred)
}
