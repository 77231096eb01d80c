package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/docflow-api/internal/utils"
)

const keyUnauthorized = "errors.unauthorized"

// Claim names accepted for each part of the caller identity.
var (
	subjectClaims = []string{"sub", "user_id", "id"}
	roleClaims    = []string{"role", "roles"}
	tenantClaims  = []string{"client_id", "clientId", "tenant_id"}
)

var (
	errMissingSubject = errors.New("token has no subject")
	errUnknownRole    = errors.New("token role is not recognised")
	errMissingTenant  = errors.New("client token has no tenant")
)

// identity is the caller described by a verified token. Admins and global
// reviewers carry no tenant.
type identity struct {
	userID   uint
	role     string
	clientID uint
}

func (id identity) bind(c *fiber.Ctx) {
	c.Locals("user_id", id.userID)
	c.Locals("user_role", id.role)
	if id.clientID != 0 {
		c.Locals("client_id", id.clientID)
	}
}

// JWTProtected verifies HMAC signed bearer tokens and binds the caller's id,
// role and tenant to the request locals.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	key := []byte(secret)
	keyFunc := func(*jwt.Token) (interface{}, error) { return key, nil }

	return func(c *fiber.Ctx) error {
		raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return utils.FailWithKey(c, fiber.StatusUnauthorized, err.Error(), keyUnauthorized)
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
			return utils.FailWithKey(c, fiber.StatusUnauthorized, "invalid token", keyUnauthorized)
		}

		caller, err := identityFromClaims(claims)
		if err != nil {
			return utils.FailWithKey(c, fiber.StatusUnauthorized, err.Error(), keyUnauthorized)
		}
		caller.bind(c)

		return c.Next()
	}
}

func bearerToken(header string) (string, error) {
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

func identityFromClaims(claims jwt.MapClaims) (identity, error) {
	var caller identity

	subject, ok := firstID(claims, subjectClaims)
	if !ok || subject == 0 {
		return caller, errMissingSubject
	}
	caller.userID = subject

	caller.role = firstRole(claims)
	switch caller.role {
	case AuthRoleAdmin, AuthRoleReviewer, AuthRoleClient:
	default:
		return caller, errUnknownRole
	}

	caller.clientID, _ = firstID(claims, tenantClaims)
	if caller.role == AuthRoleClient && caller.clientID == 0 {
		return caller, errMissingTenant
	}
	return caller, nil
}

func firstID(claims jwt.MapClaims, keys []string) (uint, bool) {
	for _, key := range keys {
		value, ok := claims[key]
		if !ok {
			continue
		}
		if id, err := claimID(value); err == nil {
			return id, true
		}
	}
	return 0, false
}

func claimID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, fmt.Errorf("invalid id %v", v)
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported id type %T", value)
	}
}

func firstRole(claims jwt.MapClaims) string {
	for _, key := range roleClaims {
		switch v := claims[key].(type) {
		case string:
			if role := canonicalRole(v); role != "" {
				return role
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok && canonicalRole(s) != "" {
					return canonicalRole(s)
				}
			}
		}
	}
	return ""
}

func canonicalRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
