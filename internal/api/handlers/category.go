package handlers

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"taskmanager/internal/config"
	"taskmanager/internal/models"
	"taskmanager/internal/query"
	"taskmanager/pkg/logger"
)

const duplicateCategoryMessage = "category with this name already exists."

// categoryNameTaken reports whether the owner already has a category with
// this name, case-insensitively. excludeID skips the row being updated.
func categoryNameTaken(userID int, name string, excludeID int) (bool, error) {
	var exists bool
	err := config.DB.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM categories WHERE user_id = $1 AND LOWER(name) = LOWER($2) AND id <> $3)",
		userID, name, excludeID).Scan(&exists)
	return exists, err
}

// ListCategories returns the caller's categories with search, ordering and
// pagination applied.
func ListCategories(c *fiber.Ctx) error {
	userID := authUserID(c)

	b := query.NewBuilder().
		Filter("user_id", userID).
		Search(c.Query("search"), "name")

	var count int
	if err := config.DB.QueryRow("SELECT COUNT(*) FROM categories"+b.Where(), b.Args()...).Scan(&count); err != nil {
		logger.ErrorLogger.Error("Error counting categories", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error fetching categories")
	}

	page, pageSize := pageParams(c, config.Settings.PageSize, config.Settings.MaxPageSize)
	orderBy := query.OrderBy(c.Query("ordering"), "name", "name", "created_at")

	rows, err := config.DB.Query(
		"SELECT id, name, created_at FROM categories"+b.Where()+orderBy+
			" LIMIT "+itoa(pageSize)+" OFFSET "+itoa((page-1)*pageSize),
		b.Args()...)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching categories", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error fetching categories")
	}
	defer rows.Close()

	username := authUsername(c)
	categories := []models.Category{}
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.CreatedAt); err != nil {
			logger.ErrorLogger.Error("Error scanning categories", zap.Error(err))
			return detail(c, fiber.StatusInternalServerError, "Error fetching categories")
		}
		category.User = username
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over categories", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error fetching categories")
	}

	return c.JSON(query.Paginate(count, page, pageSize, c.BaseURL()+c.Path(), queryValues(c), categories))
}

// CreateCategory creates a category owned by the caller. The duplicate-name
// pre-check gives a friendly error; the unique index closes the race between
// concurrent creates.
func CreateCategory(c *fiber.Ctx) error {
	userID := authUserID(c)

	type CategoryRequest struct {
		Name string `json:"name" validate:"required,max=100"`
	}

	var req CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create category", zap.Error(err))
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationErrors(c, err)
	}

	taken, err := categoryNameTaken(userID, req.Name, 0)
	if err != nil {
		logger.ErrorLogger.Error("Error checking category name", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error creating category")
	}
	if taken {
		return fieldError(c, "name", duplicateCategoryMessage)
	}

	var category models.Category
	category.Name = req.Name
	category.User = authUsername(c)
	err = config.DB.QueryRow(
		"INSERT INTO categories (user_id, name) VALUES ($1, $2) RETURNING id, created_at",
		userID, req.Name).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fieldError(c, "name", duplicateCategoryMessage)
		}
		logger.ErrorLogger.Error("Error creating category", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error creating category")
	}

	logger.AuditLogger.Info("Category created", zap.Int("category_id", category.ID), zap.Int("user_id", userID))
	return c.Status(fiber.StatusCreated).JSON(category)
}

// GetCategory returns one of the caller's categories. A category owned by
// someone else is indistinguishable from a missing one.
func GetCategory(c *fiber.Ctx) error {
	userID := authUserID(c)
	categoryID, err := c.ParamsInt("id")
	if err != nil {
		return notFound(c)
	}

	var category models.Category
	err = config.DB.QueryRow(
		"SELECT id, name, created_at FROM categories WHERE id = $1 AND user_id = $2",
		categoryID, userID).Scan(&category.ID, &category.Name, &category.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(c)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching category", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error fetching category")
	}
	category.User = authUsername(c)

	return c.JSON(category)
}

// UpdateCategory renames one of the caller's categories. PUT requires the
// name; PATCH without a name is a no-op.
func UpdateCategory(c *fiber.Ctx) error {
	userID := authUserID(c)
	categoryID, err := c.ParamsInt("id")
	if err != nil {
		return notFound(c)
	}

	var category models.Category
	err = config.DB.QueryRow(
		"SELECT id, name, created_at FROM categories WHERE id = $1 AND user_id = $2",
		categoryID, userID).Scan(&category.ID, &category.Name, &category.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(c)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching category", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error updating category")
	}
	category.User = authUsername(c)

	type CategoryUpdateRequest struct {
		Name *string `json:"name" validate:"omitempty,max=100"`
	}

	var req CategoryUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update category", zap.Error(err))
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationErrors(c, err)
	}
	if req.Name == nil {
		if c.Method() == fiber.MethodPut {
			return fieldError(c, "name", "This field is required.")
		}
		return c.JSON(category)
	}
	if *req.Name == "" {
		return fieldError(c, "name", "This field may not be blank.")
	}

	taken, err := categoryNameTaken(userID, *req.Name, categoryID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking category name", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error updating category")
	}
	if taken {
		return fieldError(c, "name", duplicateCategoryMessage)
	}

	if _, err := config.DB.Exec(
		"UPDATE categories SET name = $1 WHERE id = $2 AND user_id = $3",
		*req.Name, categoryID, userID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fieldError(c, "name", duplicateCategoryMessage)
		}
		logger.ErrorLogger.Error("Error updating category", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error updating category")
	}
	category.Name = *req.Name

	logger.AuditLogger.Info("Category updated", zap.Int("category_id", categoryID), zap.Int("user_id", userID))
	return c.JSON(category)
}

// DeleteCategory removes one of the caller's categories. Tasks that pointed
// at it fall back to uncategorized via the FK's ON DELETE SET NULL.
func DeleteCategory(c *fiber.Ctx) error {
	userID := authUserID(c)
	categoryID, err := c.ParamsInt("id")
	if err != nil {
		return notFound(c)
	}

	res, err := config.DB.Exec(
		"DELETE FROM categories WHERE id = $1 AND user_id = $2",
		categoryID, userID)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting category", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error deleting category")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(c)
	}

	logger.AuditLogger.Info("Category deleted", zap.Int("category_id", categoryID), zap.Int("user_id", userID))
	return c.SendStatus(fiber.StatusNoContent)
}
