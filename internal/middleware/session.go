package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// SessionCookie holds the anonymous cart session id
	SessionCookie = "cart_session"
	// SessionHeader lets API clients without cookies pick their session
	SessionHeader = "X-Cart-Session"

	sessionLocal = "session_id"
)

// Session makes sure every customer request carries a cart session id.
// An existing cookie or header is reused, otherwise a new id is issued.
func Session(ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := strings.TrimSpace(c.Cookies(SessionCookie))
		if sessionID == "" {
			sessionID = strings.TrimSpace(c.Get(SessionHeader))
		}
		if _, err := uuid.Parse(sessionID); err != nil {
			sessionID = uuid.New().String()
		}

		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    sessionID,
			Expires:  time.Now().Add(ttl),
			HTTPOnly: true,
			SameSite: "Lax",
		})
		c.Set(SessionHeader, sessionID)

		c.Locals(sessionLocal, sessionID)
		return c.Next()
	}
}

// SessionID returns the id stored by Session, empty if the middleware did not run
func SessionID(c *fiber.Ctx) string {
	sessionID, _ := c.Locals(sessionLocal).(string)
	return sessionID
}
