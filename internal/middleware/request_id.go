package middleware

import (
	contextPkg "PoseAnomaly/pkg/context"
	"PoseAnomaly/pkg/utils"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	RequestIDKey = "X-Request-ID"

	maxInboundRequestIDLen = 64
)

// NewRequestIDMiddleware tags every request with an id that follows it
// through logs, stored analyses and websocket message ids. A caller
// supplied X-Request-ID is kept when it is a short token, otherwise a
// ULID is minted.
func NewRequestIDMiddleware() fiber.Handler {
	utilsInstance := utils.New()

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)
		if !validInboundRequestID(requestID) {
			requestID, _ = utilsInstance.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.SetUserContext(contextPkg.WithRequestID(c.UserContext(), requestID))
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}

// validInboundRequestID accepts ids made of letters, digits, '-', '_' and
// '.' only, so they can be embedded in log fields and derived ids as is.
func validInboundRequestID(id string) bool {
	if id == "" || len(id) > maxInboundRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
