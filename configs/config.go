package configs

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. It is loaded once in main and
// never mutated afterwards.
type Config struct {
	Port       int
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBNameTest string
	RedisHost  string
	RedisPort  int

	// JWT policy. Access tokens authorize API calls, refresh tokens are
	// only good for /api/token/refresh/ and are rotated on every use.
	JWTSecret       []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Pagination policy for list endpoints. Clients may override the page
	// size with ?page_size=N up to MaxPageSize.
	PageSize    int
	MaxPageSize int
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "secret"
	}

	return Config{
		Port:            envInt("PORT", 3004),
		DBHost:          os.Getenv("DB_HOST"),
		DBPort:          envInt("DB_PORT", 5432),
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBName:          os.Getenv("DB_NAME"),
		DBNameTest:      os.Getenv("DB_NAME_TEST"),
		RedisHost:       os.Getenv("REDIS_HOST"),
		RedisPort:       envInt("REDIS_PORT", 6379),
		JWTSecret:       []byte(secret),
		AccessTokenTTL:  time.Duration(envInt("ACCESS_TOKEN_MINUTES", 60)) * time.Minute,
		RefreshTokenTTL: time.Duration(envInt("REFRESH_TOKEN_DAYS", 7)) * 24 * time.Hour,
		PageSize:        envInt("PAGE_SIZE", 5),
		MaxPageSize:     envInt("MAX_PAGE_SIZE", 100),
	}
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
