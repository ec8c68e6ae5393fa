package config

import (
	"context"
	"database/sql"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"

	"taskmanager/configs"
)

var (
	// Shared dependencies, initialized once in main (or TestMain) and
	// read-only afterwards.
	DB          *sql.DB
	RedisClient *redis.Client
	Validate    = validator.New()
	Ctx         = context.Background()

	// Settings is the immutable runtime configuration.
	Settings configs.Config
)

func init() {
	// Report validation errors under the JSON field name, not the Go one.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
