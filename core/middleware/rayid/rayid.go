package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderName is the request/response header carrying the ray ID.
const HeaderName = "X-Ray-ID"

// LocalsKey is the fiber.Ctx locals key the ray ID is stored under.
const LocalsKey = "ray_id"

// New returns middleware that assigns every request a ray ID. An incoming X-Ray-ID
// header is reused so callers can correlate their own logs.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(HeaderName)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals(LocalsKey, rid)
		c.Set(HeaderName, rid)
		return c.Next()
	}
}
