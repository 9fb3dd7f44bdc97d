package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns configured flag names and their state for the caller.
// Anonymous callers are evaluated against an empty subject.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, "", fiber.Map{
		"flags":     s.featureFlags.Names(),
		"evaluated": s.featureFlags.Snapshot(actor(c).ID),
	})
}
