package middlewares

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// BindAndValidate parses the request body into dst and validates its tags.
// Parse failures become a 400 fiber.Error; validation failures surface as
// validator.ValidationErrors, which the global error handler renders as 422.
func BindAndValidate(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return validate.Struct(dst)
}

// ValidateStruct runs the shared validator over any struct value.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}
