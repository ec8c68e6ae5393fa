package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskmanager/internal/config"
	"taskmanager/pkg/logger"
)

// Token types carried in the token_type claim. Access tokens authorize API
// requests; refresh tokens are only accepted by the refresh endpoint.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Redis key prefix for refresh jtis that have been rotated away.
const revokedPrefix = "revoked_refresh:"

var ErrInvalidToken = errors.New("token is invalid or expired")

// Pair is the access/refresh pair returned by the token endpoints.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Issue signs a new access+refresh pair for the given user. The refresh
// token carries a jti so it can be retired when rotated.
func Issue(userID int, username string) (Pair, error) {
	now := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    userID,
		"username":   username,
		"token_type": TypeAccess,
		"iat":        now.Unix(),
		"exp":        now.Add(config.Settings.AccessTokenTTL).Unix(),
	})
	accessString, err := access.SignedString(config.Settings.JWTSecret)
	if err != nil {
		return Pair{}, err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    userID,
		"username":   username,
		"token_type": TypeRefresh,
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(config.Settings.RefreshTokenTTL).Unix(),
	})
	refreshString, err := refresh.SignedString(config.Settings.JWTSecret)
	if err != nil {
		return Pair{}, err
	}

	return Pair{Access: accessString, Refresh: refreshString}, nil
}

// Parse validates signature and expiry and checks the token is of the
// expected type. Any failure collapses into ErrInvalidToken so callers
// cannot leak why a token was rejected.
func Parse(raw, wantType string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return config.Settings.JWTSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if tokenType, _ := claims["token_type"].(string); tokenType != wantType {
		return nil, ErrInvalidToken
	}
	if _, ok := claims["user_id"].(float64); !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Refresh validates a refresh token, retires its jti for the token's
// remaining lifetime, and issues a fresh pair. A refresh token presented a
// second time after rotation is rejected.
func Refresh(ctx context.Context, raw string) (Pair, error) {
	claims, err := Parse(raw, TypeRefresh)
	if err != nil {
		return Pair{}, err
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return Pair{}, ErrInvalidToken
	}

	revoked, err := config.RedisClient.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return Pair{}, err
	}
	if revoked > 0 {
		logger.SecurityLogger.Warn("Rotated refresh token reused", zap.String("jti", jti))
		return Pair{}, ErrInvalidToken
	}

	exp, _ := claims["exp"].(float64)
	if ttl := time.Until(time.Unix(int64(exp), 0)); ttl > 0 {
		if err := config.RedisClient.Set(ctx, revokedPrefix+jti, "1", ttl).Err(); err != nil {
			return Pair{}, err
		}
	}

	userID := int(claims["user_id"].(float64))
	username, _ := claims["username"].(string)
	return Issue(userID, username)
}
