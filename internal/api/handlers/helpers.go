package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"taskmanager/internal/query"
)

// itoa keeps LIMIT/OFFSET literals readable at the call sites.
var itoa = strconv.Itoa

// detail writes the single-message error body used for auth and not-found
// failures.
func detail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"detail": message})
}

func notFound(c *fiber.Ctx) error {
	return detail(c, fiber.StatusNotFound, "Not found.")
}

// fieldError writes a 400 with one field-level message.
func fieldError(c *fiber.Ctx, field, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		field: []string{message},
	})
}

// validationErrors converts validator failures into a per-field message map.
func validationErrors(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	out := fiber.Map{}
	for _, fe := range verrs {
		out[fe.Field()] = []string{validationMessage(fe)}
	}
	return c.Status(fiber.StatusBadRequest).JSON(out)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "oneof":
		return fmt.Sprintf("%q is not a valid choice.", fe.Value())
	default:
		return "Invalid value."
	}
}

// authUserID returns the identity resolved by the auth middleware.
func authUserID(c *fiber.Ctx) int {
	return c.Locals("userID").(int)
}

func authUsername(c *fiber.Ctx) string {
	if u, ok := c.Locals("username").(string); ok {
		return u
	}
	return ""
}

// pageParams reads page/page_size from the query string, applying the
// configured default and cap.
func pageParams(c *fiber.Ctx, defSize, maxSize int) (page, pageSize int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.Query("page_size"))
	return page, query.ClampPageSize(pageSize, defSize, maxSize)
}

// queryValues copies the request's query string into url.Values so the
// pagination links can carry the active filters along.
func queryValues(c *fiber.Ctx) url.Values {
	values := url.Values{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})
	return values
}
