package middlewares

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"govdata-backend/gateway"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "

	// CallerKey is where the parsed caller identity lives in request locals.
	CallerKey = "caller"
)

// Claims is our custom JWT payload. Tenant users carry tenant_id + user_id;
// management users carry management_user_id instead. Token issuance lives in
// the identity service; this middleware only validates.
type Claims struct {
	TenantID         *uint `json:"tenant_id,omitempty"`
	UserID           *uint `json:"user_id,omitempty"`
	ManagementUserID *uint `json:"management_user_id,omitempty"`
	jwt.RegisteredClaims
}

var (
	secretOnce sync.Once
	jwtSecret  []byte
	secretErr  error
)

func loadJWTSecret() error {
	secretOnce.Do(func() {
		// Prefer JWT_SECRET_KEY, fallback to JWT_SECRET
		sec := os.Getenv("JWT_SECRET_KEY")
		if strings.TrimSpace(sec) == "" {
			sec = os.Getenv("JWT_SECRET")
		}
		if strings.TrimSpace(sec) == "" {
			secretErr = errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
			return
		}
		jwtSecret = []byte(sec)
	})
	return secretErr
}

// IsAuthenticatedHeader validates a Bearer token, enforces HS256, and stashes
// the caller identity in c.Locals(CallerKey).
func IsAuthenticatedHeader() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := loadJWTSecret(); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "server auth not configured",
			})
		}

		h := c.Get(authHeader)
		if h == "" || !strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "missing/invalid Authorization header"})
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid bearer token"})
		}

		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		var claims Claims
		token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			// Parser already restricts to HS256; this is just defense-in-depth.
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid or expired token"})
		}

		caller, err := claims.Caller()
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": err.Error()})
		}
		c.Locals(CallerKey, caller)

		return c.Next()
	}
}

// Caller maps the claims onto the tagged caller variant.
func (c *Claims) Caller() (gateway.Caller, error) {
	switch {
	case c.ManagementUserID != nil:
		return gateway.ManagementCaller(*c.ManagementUserID), nil
	case c.TenantID != nil && c.UserID != nil:
		return gateway.TenantCaller(*c.TenantID, *c.UserID), nil
	default:
		return gateway.Caller{}, errors.New("token missing caller identity")
	}
}

// CallerFromCtx pulls the authenticated caller out of request locals.
func CallerFromCtx(c *fiber.Ctx) (gateway.Caller, bool) {
	caller, ok := c.Locals(CallerKey).(gateway.Caller)
	return caller, ok
}

// GenerateJWT signs a new HS256 token for the given caller, expiring in 24h.
func GenerateJWT(caller gateway.Caller) (string, error) {
	if err := loadJWTSecret(); err != nil {
		return "", err
	}
	now := time.Now()
	claims := &Claims{
		TenantID:         caller.TenantRef(),
		UserID:           caller.UserRef(),
		ManagementUserID: caller.ManagementRef(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			// (Optional) set Issuer/Audience here if you want stricter validation
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}
