package api

import (
	"github.com/gofiber/fiber/v2"

	"taskmanager/internal/api/handlers"
	"taskmanager/internal/middleware"
)

// RegisterRoutes mounts all endpoints under /api. Token and register
// endpoints are public; everything else requires a bearer access token.
func RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Auth
	api.Post("/token", handlers.ObtainToken)
	api.Post("/token/refresh", handlers.RefreshToken)
	api.Post("/register", handlers.Register)

	// Categories
	categoryRoutes := api.Group("/categories", middleware.UseToken)
	categoryRoutes.Get("/", handlers.ListCategories)
	categoryRoutes.Post("/", handlers.CreateCategory)
	categoryRoutes.Get("/:id", handlers.GetCategory)
	categoryRoutes.Put("/:id", handlers.UpdateCategory)
	categoryRoutes.Patch("/:id", handlers.UpdateCategory)
	categoryRoutes.Delete("/:id", handlers.DeleteCategory)

	// Tasks
	taskRoutes := api.Group("/tasks", middleware.UseToken)
	taskRoutes.Get("/", handlers.ListTasks)
	taskRoutes.Post("/", handlers.CreateTask)
	taskRoutes.Get("/:id", handlers.GetTask)
	taskRoutes.Put("/:id", handlers.UpdateTask)
	taskRoutes.Patch("/:id", handlers.PatchTask)
	taskRoutes.Delete("/:id", handlers.DeleteTask)
	taskRoutes.Patch("/:id/toggle", handlers.ToggleTask)
}
