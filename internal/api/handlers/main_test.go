package handlers_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"taskmanager/configs"
	"taskmanager/internal/api"
	"taskmanager/internal/config"
	"taskmanager/internal/middleware"
	"taskmanager/internal/repository"
	"taskmanager/pkg/database"
	"taskmanager/pkg/logger"
)

const testPassword = "pass1234"

func connectDBTest(cfg configs.Config) *sql.DB {
	psqlconn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBNameTest)
	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	return db
}

func TestMain(m *testing.M) {
	logger.InitLoggers()
	defer logger.SyncLoggers()

	os.Setenv("GO_ENV", "test")

	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../../.env"); err != nil {
			logger.SystemLogger.Info("No .env file found, using default values")
		}
	}

	cfg := configs.LoadConfig()
	config.Settings = cfg

	config.DB = connectDBTest(cfg)
	defer config.DB.Close()

	repository.CreateTableIfNotExists(config.DB)

	config.RedisClient = database.ConnectRedis(cfg)
	defer config.RedisClient.Close()

	code := m.Run()

	repository.DeleteAllTable(config.DB)

	os.Exit(code)
}

// CreateTestApp builds a Fiber app with the full route table, the same way
// main does.
func CreateTestApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.ErrorHandler())
	api.RegisterRoutes(app)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Error marshaling request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Error decoding response body: %v", err)
	}
	return result
}

// registerUser creates a unique user through the API and returns its
// username.
func registerUser(t *testing.T, app *fiber.App, prefix string) string {
	t.Helper()

	username := fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	resp := doRequest(t, app, "POST", "/api/register/", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Register returned %d", resp.StatusCode)
	}
	resp.Body.Close()
	return username
}

// obtainTokens logs a user in and returns the access+refresh pair.
func obtainTokens(t *testing.T, app *fiber.App, username string) (string, string) {
	t.Helper()

	resp := doRequest(t, app, "POST", "/api/token/", "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Token obtain returned %d", resp.StatusCode)
	}
	result := decodeBody(t, resp)

	access, _ := result["access"].(string)
	refresh, _ := result["refresh"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("Expected access and refresh tokens, got %v", result)
	}
	return access, refresh
}

// loginUser registers a fresh user and returns an access token for it.
func loginUser(t *testing.T, app *fiber.App, prefix string) (string, string) {
	t.Helper()
	username := registerUser(t, app, prefix)
	access, _ := obtainTokens(t, app, username)
	return access, username
}

// createTask posts a task and returns the decoded response body.
func createTask(t *testing.T, app *fiber.App, token string, fields map[string]interface{}) map[string]interface{} {
	t.Helper()

	resp := doRequest(t, app, "POST", "/api/tasks/", token, fields)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("CreateTask returned %d", resp.StatusCode)
	}
	return decodeBody(t, resp)
}

// createCategory posts a category and returns the decoded response body.
func createCategory(t *testing.T, app *fiber.App, token, name string) map[string]interface{} {
	t.Helper()

	resp := doRequest(t, app, "POST", "/api/categories/", token, map[string]string{"name": name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("CreateCategory returned %d", resp.StatusCode)
	}
	return decodeBody(t, resp)
}
