package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-assignment-api/internal/utils"
)

const (
	localUserID   = "user_id"
	localUserRole = "user_role"
)

var (
	userIDClaims = []string{"sub", "user_id", "id"}
	roleClaims   = []string{"role", "roles"}
)

// JWTProtected validates HMAC bearer tokens and stores the caller's numeric
// id and role in the request locals. Tokens without a usable id are rejected.
func JWTProtected(secret string) fiber.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	}))

	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		userID, ok := extractUserIDFromClaims(claims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "token has no user id")
		}
		c.Locals(localUserID, userID)

		if role := extractUserRoleFromClaims(claims); role != "" {
			c.Locals(localUserRole, role)
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("authorization header missing")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", errors.New("invalid authorization header")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("invalid token")
	}
	return token, nil
}

func extractUserIDFromClaims(claims jwt.MapClaims) (uint, bool) {
	for _, key := range userIDClaims {
		value, ok := claims[key]
		if !ok {
			continue
		}
		if id, ok := normalizeUserID(value); ok {
			return id, true
		}
	}
	return 0, false
}

func normalizeUserID(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case float64:
		if v < 1 || v != float64(uint64(v)) {
			return 0, false
		}
		return uint(v), true
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil || parsed == 0 {
			return 0, false
		}
		return uint(parsed), true
	default:
		return 0, false
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	for _, key := range roleClaims {
		switch v := claims[key].(type) {
		case string:
			if role := normalizeRole(v); role != "" {
				return role
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					if role := normalizeRole(s); role != "" {
						return role
					}
				}
			}
		}
	}
	return ""
}

// normalizeRole maps "ROLE_TEACHER", " Teacher " and "teacher" to the same name.
func normalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	return strings.TrimPrefix(role, "role_")
}
