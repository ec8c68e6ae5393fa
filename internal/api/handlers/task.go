package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskmanager/internal/config"
	"taskmanager/internal/models"
	"taskmanager/internal/query"
	"taskmanager/pkg/logger"
)

const taskColumns = "id, title, description, due_date, priority, status, completed_at, category_id, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(s rowScanner, task *models.Task) error {
	var completed sql.NullTime
	var category sql.NullInt64
	err := s.Scan(&task.ID, &task.Title, &task.Description, &task.DueDate,
		&task.Priority, &task.Status, &completed, &category,
		&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return err
	}
	if completed.Valid {
		t := completed.Time
		task.CompletedAt = &t
	}
	if category.Valid {
		id := int(category.Int64)
		task.Category = &id
	}
	return nil
}

func fetchTask(taskID, userID int) (*models.Task, error) {
	var task models.Task
	row := config.DB.QueryRow(
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND user_id = $2",
		taskID, userID)
	if err := scanTask(row, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// categoryBelongsToUser reports whether the category exists and is owned by
// the user. A foreign category is treated exactly like a nonexistent one.
func categoryBelongsToUser(categoryID, userID int) (bool, error) {
	var exists bool
	err := config.DB.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND user_id = $2)",
		categoryID, userID).Scan(&exists)
	return exists, err
}

func saveTask(task *models.Task, userID int) error {
	return config.DB.QueryRow(
		`UPDATE tasks
		 SET title = $1, description = $2, due_date = $3, priority = $4,
		     status = $5, completed_at = $6, category_id = $7, updated_at = NOW()
		 WHERE id = $8 AND user_id = $9
		 RETURNING updated_at`,
		task.Title, task.Description, task.DueDate, task.Priority,
		task.Status, task.CompletedAt, task.Category, task.ID, userID,
	).Scan(&task.UpdatedAt)
}

// applyStatus moves a task to the given status and keeps the
// completed_at invariant: non-null exactly when COMPLETED.
func applyStatus(task *models.Task, status string) {
	task.Status = status
	if status == models.StatusCompleted {
		now := time.Now()
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}
}

// TaskRequest is the full write payload used by create and PUT. user and
// completed_at are server-managed and rejected when a client supplies them.
type TaskRequest struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Description string          `json:"description"`
	DueDate     *models.Date    `json:"due_date" validate:"required"`
	Priority    string          `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	Status      string          `json:"status" validate:"omitempty,oneof=PENDING COMPLETED"`
	Category    *int            `json:"category"`
	User        json.RawMessage `json:"user"`
	CompletedAt json.RawMessage `json:"completed_at"`
}

func rejectReadOnly(c *fiber.Ctx, user, completedAt json.RawMessage) error {
	if len(user) > 0 {
		return fieldError(c, "user", "This field is read-only.")
	}
	if len(completedAt) > 0 {
		return fieldError(c, "completed_at", "This field is read-only.")
	}
	return nil
}

// CreateTask creates a task owned by the caller.
func CreateTask(c *fiber.Ctx) error {
	userID := authUserID(c)

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationErrors(c, err)
	}
	if err := rejectReadOnly(c, req.User, req.CompletedAt); err != nil {
		return err
	}

	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if req.Status == "" {
		req.Status = models.StatusPending
	}

	if req.Category != nil {
		ok, err := categoryBelongsToUser(*req.Category, userID)
		if err != nil {
			logger.ErrorLogger.Error("Error checking category", zap.Error(err))
			return detail(c, fiber.StatusInternalServerError, "Error creating task")
		}
		if !ok {
			return fieldError(c, "category", "Invalid category for this user.")
		}
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     *req.DueDate,
		Priority:    req.Priority,
		Category:    req.Category,
		User:        authUsername(c),
	}
	applyStatus(&task, req.Status)

	err := config.DB.QueryRow(
		`INSERT INTO tasks (user_id, title, description, due_date, priority, status, completed_at, category_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		userID, task.Title, task.Description, task.DueDate, task.Priority,
		task.Status, task.CompletedAt, task.Category,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error creating task")
	}

	logger.AuditLogger.Info("Task created", zap.Int("task_id", task.ID), zap.Int("user_id", userID))
	return c.Status(fiber.StatusCreated).JSON(task)
}

// ListTasks returns the caller's tasks with filtering, search, ordering and
// pagination applied.
func ListTasks(c *fiber.Ctx) error {
	userID := authUserID(c)

	b := query.NewBuilder().Filter("user_id", userID)

	if priority := c.Query("priority"); priority != "" {
		if !models.ValidPriority(priority) {
			return fieldError(c, "priority", "Select a valid choice.")
		}
		b.Filter("priority", priority)
	}
	if status := c.Query("status"); status != "" {
		if !models.ValidStatus(status) {
			return fieldError(c, "status", "Select a valid choice.")
		}
		b.Filter("status", status)
	}
	if dueDate := c.Query("due_date"); dueDate != "" {
		parsed, err := models.ParseDate(dueDate)
		if err != nil {
			return fieldError(c, "due_date", "Enter a valid date.")
		}
		b.Filter("due_date", parsed)
	}
	if category := c.Query("category"); category != "" {
		categoryID, err := strconv.Atoi(category)
		if err != nil {
			return fieldError(c, "category", "Enter a number.")
		}
		b.Filter("category_id", categoryID)
	}
	b.Search(c.Query("search"), "title", "description")

	var count int
	if err := config.DB.QueryRow("SELECT COUNT(*) FROM tasks"+b.Where(), b.Args()...).Scan(&count); err != nil {
		logger.ErrorLogger.Error("Error counting tasks", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error fetching tasks")
	}

	page, pageSize := pageParams(c, config.Settings.PageSize, config.Settings.MaxPageSize)
	orderBy := query.OrderBy(c.Query("ordering"), "-created_at", "due_date", "priority", "created_at")

	rows, err := config.DB.Query(
		"SELECT "+taskColumns+" FROM tasks"+b.Where()+orderBy+
			" LIMIT "+itoa(pageSize)+" OFFSET "+itoa((page-1)*pageSize),
		b.Args()...)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error fetching tasks")
	}
	defer rows.Close()

	username := authUsername(c)
	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		if err := scanTask(rows, &task); err != nil {
			logger.ErrorLogger.Error("Error scanning tasks", zap.Error(err))
			return detail(c, fiber.StatusInternalServerError, "Error fetching tasks")
		}
		task.User = username
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over tasks", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error fetching tasks")
	}

	return c.JSON(query.Paginate(count, page, pageSize, c.BaseURL()+c.Path(), queryValues(c), tasks))
}

// GetTask returns one of the caller's tasks; someone else's task is a 404.
func GetTask(c *fiber.Ctx) error {
	userID := authUserID(c)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return notFound(c)
	}

	task, err := fetchTask(taskID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(c)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error fetching task")
	}
	task.User = authUsername(c)

	return c.JSON(task)
}

// UpdateTask replaces a task's mutable fields (PUT).
func UpdateTask(c *fiber.Ctx) error {
	userID := authUserID(c)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return notFound(c)
	}

	task, err := fetchTask(taskID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(c)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error updating task")
	}
	task.User = authUsername(c)

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationErrors(c, err)
	}
	if err := rejectReadOnly(c, req.User, req.CompletedAt); err != nil {
		return err
	}

	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if req.Status == "" {
		req.Status = models.StatusPending
	}

	if req.Category != nil {
		ok, err := categoryBelongsToUser(*req.Category, userID)
		if err != nil {
			logger.ErrorLogger.Error("Error checking category", zap.Error(err))
			return detail(c, fiber.StatusInternalServerError, "Error updating task")
		}
		if !ok {
			return fieldError(c, "category", "Invalid category for this user.")
		}
	}

	task.Title = req.Title
	task.Description = req.Description
	task.DueDate = *req.DueDate
	task.Priority = req.Priority
	task.Category = req.Category
	if req.Status != task.Status {
		applyStatus(task, req.Status)
	}

	if err := saveTask(task, userID); err != nil {
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error updating task")
	}

	logger.AuditLogger.Info("Task updated", zap.Int("task_id", taskID), zap.Int("user_id", userID))
	return c.JSON(task)
}

// PatchTask updates only the fields present in the payload.
func PatchTask(c *fiber.Ctx) error {
	userID := authUserID(c)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return notFound(c)
	}

	task, err := fetchTask(taskID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(c)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error updating task")
	}
	task.User = authUsername(c)

	// Pointers (and raw JSON for category) distinguish an omitted field
	// from one explicitly set, including "category": null to clear it.
	type TaskPatchRequest struct {
		Title       *string         `json:"title" validate:"omitempty,max=255"`
		Description *string         `json:"description"`
		DueDate     *models.Date    `json:"due_date"`
		Priority    *string         `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
		Status      *string         `json:"status" validate:"omitempty,oneof=PENDING COMPLETED"`
		Category    json.RawMessage `json:"category"`
		User        json.RawMessage `json:"user"`
		CompletedAt json.RawMessage `json:"completed_at"`
	}

	var req TaskPatchRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in patch task", zap.Error(err))
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationErrors(c, err)
	}
	if err := rejectReadOnly(c, req.User, req.CompletedAt); err != nil {
		return err
	}

	if req.Title != nil {
		if *req.Title == "" {
			return fieldError(c, "title", "This field may not be blank.")
		}
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.DueDate != nil {
		task.DueDate = *req.DueDate
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if len(req.Category) > 0 {
		if string(req.Category) == "null" {
			task.Category = nil
		} else {
			categoryID, err := strconv.Atoi(string(req.Category))
			if err != nil {
				return fieldError(c, "category", "Incorrect type. Expected pk value.")
			}
			ok, err := categoryBelongsToUser(categoryID, userID)
			if err != nil {
				logger.ErrorLogger.Error("Error checking category", zap.Error(err))
				return detail(c, fiber.StatusInternalServerError, "Error updating task")
			}
			if !ok {
				return fieldError(c, "category", "Invalid category for this user.")
			}
			task.Category = &categoryID
		}
	}
	if req.Status != nil && *req.Status != task.Status {
		applyStatus(task, *req.Status)
	}

	if err := saveTask(task, userID); err != nil {
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error updating task")
	}

	logger.AuditLogger.Info("Task updated", zap.Int("task_id", taskID), zap.Int("user_id", userID))
	return c.JSON(task)
}

// ToggleTask flips a task between PENDING and COMPLETED, stamping or
// clearing completed_at. A body with an explicit status forces that state
// instead of flipping.
func ToggleTask(c *fiber.Ctx) error {
	userID := authUserID(c)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return notFound(c)
	}

	task, err := fetchTask(taskID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(c)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error toggling task")
	}
	task.User = authUsername(c)

	target := models.StatusPending
	if task.Status == models.StatusPending {
		target = models.StatusCompleted
	}
	if len(c.Body()) > 0 {
		type ToggleRequest struct {
			Status string `json:"status" validate:"omitempty,oneof=PENDING COMPLETED"`
		}
		var req ToggleRequest
		if err := c.BodyParser(&req); err != nil {
			logger.ErrorLogger.Error("Bad request in toggle task", zap.Error(err))
			return detail(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := config.Validate.Struct(req); err != nil {
			return validationErrors(c, err)
		}
		if req.Status != "" {
			target = req.Status
		}
	}

	applyStatus(task, target)
	if err := saveTask(task, userID); err != nil {
		logger.ErrorLogger.Error("Error toggling task", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error toggling task")
	}

	logger.AuditLogger.Info("Task toggled",
		zap.Int("task_id", taskID), zap.Int("user_id", userID), zap.String("status", task.Status))
	return c.JSON(task)
}

// DeleteTask removes one of the caller's tasks.
func DeleteTask(c *fiber.Ctx) error {
	userID := authUserID(c)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return notFound(c)
	}

	res, err := config.DB.Exec("DELETE FROM tasks WHERE id = $1 AND user_id = $2", taskID, userID)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error deleting task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(c)
	}

	logger.AuditLogger.Info("Task deleted", zap.Int("task_id", taskID), zap.Int("user_id", userID))
	return c.SendStatus(fiber.StatusNoContent)
}
