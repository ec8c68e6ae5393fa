package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"taskmanager/internal/config"
	"taskmanager/internal/token"
	"taskmanager/pkg/crypto"
	"taskmanager/pkg/logger"
)

// ObtainToken validates credentials and returns an access+refresh pair.
func ObtainToken(c *fiber.Ctx) error {
	type TokenRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in token obtain", zap.Error(err))
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationErrors(c, err)
	}

	var (
		userID   int
		username string
		hash     string
	)
	err := config.DB.QueryRow(
		"SELECT id, username, password FROM users WHERE username = $1",
		req.Username).Scan(&userID, &username, &hash)
	if err != nil {
		logger.SecurityLogger.Warn("Login attempt for unknown user", zap.String("username", req.Username))
		return detail(c, fiber.StatusUnauthorized, "No active account found with the given credentials")
	}

	if err := crypto.CheckPassword(hash, req.Password); err != nil {
		logger.SecurityLogger.Warn("Invalid password", zap.String("username", req.Username))
		return detail(c, fiber.StatusUnauthorized, "No active account found with the given credentials")
	}

	pair, err := token.Issue(userID, username)
	if err != nil {
		logger.ErrorLogger.Error("Error generating tokens", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error generating tokens")
	}

	logger.AuditLogger.Info("Token pair issued", zap.Int("user_id", userID))
	return c.JSON(pair)
}

// RefreshToken rotates a refresh token: the presented token is retired and a
// new access+refresh pair is returned. Reusing a rotated token fails.
func RefreshToken(c *fiber.Ctx) error {
	type RefreshRequest struct {
		Refresh string `json:"refresh" validate:"required"`
	}

	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in token refresh", zap.Error(err))
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationErrors(c, err)
	}

	pair, err := token.Refresh(c.Context(), req.Refresh)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			logger.SecurityLogger.Warn("Refresh with invalid token")
			return detail(c, fiber.StatusUnauthorized, "Token is invalid or expired")
		}
		logger.ErrorLogger.Error("Error refreshing token", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error refreshing token")
	}

	logger.AuditLogger.Info("Refresh token rotated")
	return c.JSON(pair)
}

// Register creates a new user account.
func Register(c *fiber.Ctx) error {
	type RegisterRequest struct {
		Username string `json:"username" validate:"required,max=150,excludesall=@?"`
		Email    string `json:"email" validate:"omitempty,email"`
		Password string `json:"password" validate:"required,min=6"`
	}

	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in register", zap.Error(err))
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during register", zap.Error(err))
		return validationErrors(c, err)
	}

	hashed, err := crypto.HashPassword(req.Password)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error hashing password")
	}

	var userID int
	err = config.DB.QueryRow(
		"INSERT INTO users (username, email, password) VALUES ($1, $2, $3) RETURNING id",
		req.Username, req.Email, hashed).Scan(&userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			logger.SecurityLogger.Warn("Duplicate username", zap.String("username", req.Username))
			return fieldError(c, "username", "A user with that username already exists.")
		}
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Error creating user")
	}

	logger.AuditLogger.Info("User registered", zap.Int("user_id", userID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       userID,
		"username": req.Username,
	})
}
