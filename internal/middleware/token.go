package middleware

import (
	"PoseAnomaly/internal/entity"
	jwtPkg "PoseAnomaly/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenSecret = "JWT_ACCESS_TOKEN_SECRET"
)

func (m *middleware) unauthorized(ctx *fiber.Ctx, reason string) error {
	m.log.WithFields(logrus.Fields{
		"request_id": m.GetRequestID(ctx),
		"path":       ctx.Path(),
		"client_ip":  ctx.IP(),
		"reason":     reason,
	}).Warn("Token verification failed")

	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Unauthorized, access token invalid or expired",
		"code":  "UNAUTHORIZED",
	})
}

// NewTokenMiddleware rejects requests without a valid bearer token and
// stores the caller as entity.UserLoginData under the "user" local.
func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	userToken, err := jwtPkg.VerifyTokenHeader(ctx, AccessTokenSecret)
	if err != nil {
		return m.unauthorized(ctx, err.Error())
	}

	claims, ok := userToken.Claims.(jwt.MapClaims)
	if !ok {
		return m.unauthorized(ctx, "invalid token claims")
	}

	id, _ := claims["id"].(string)
	email, _ := claims["email"].(string)
	username, _ := claims["username"].(string)
	if id == "" {
		return m.unauthorized(ctx, "token claims are missing the subject id")
	}

	ctx.Locals("user", entity.UserLoginData{
		ID:       id,
		Email:    email,
		Username: username,
	})

	m.log.WithFields(logrus.Fields{
		"request_id": m.GetRequestID(ctx),
		"user_id":    id,
	}).Debug("Authentication successful")
	return ctx.Next()
}
