package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/subsyncio/subsync/app/controllers"
)

// APIServer implements the v1 route handlers
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// PostConnection creates an ESP connection
func (s *APIServer) PostConnection(c *fiber.Ctx) error {
	return controllers.HandleCreateConnection(c)
}

// GetConnections lists connections of a user
func (s *APIServer) GetConnections(c *fiber.Ctx) error {
	return controllers.HandleListConnections(c)
}

// GetConnection returns a single connection
func (s *APIServer) GetConnection(c *fiber.Ctx) error {
	return controllers.HandleGetConnection(c)
}

// DeleteConnection removes a connection and its synced data
func (s *APIServer) DeleteConnection(c *fiber.Ctx) error {
	return controllers.HandleDeleteConnection(c)
}

// GetConnectionPublications lists the remotely available lists
func (s *APIServer) GetConnectionPublications(c *fiber.Ctx) error {
	return controllers.HandleListPublications(c)
}

// PutConnectionPublications replaces the publication selection
func (s *APIServer) PutConnectionPublications(c *fiber.Ctx) error {
	return controllers.HandleUpdatePublications(c)
}

// PostConnectionSync triggers a sync run
func (s *APIServer) PostConnectionSync(c *fiber.Ctx) error {
	return controllers.HandleSyncConnection(c)
}

// GetConnectionHistory returns sync run records
func (s *APIServer) GetConnectionHistory(c *fiber.Ctx) error {
	return controllers.HandleGetSyncHistory(c)
}

// GetConnectionSubscribers lists stored subscribers (masked emails)
func (s *APIServer) GetConnectionSubscribers(c *fiber.Ctx) error {
	return controllers.HandleListSubscribers(c)
}

// PostUser registers a new account owner
func (s *APIServer) PostUser(c *fiber.Ctx) error {
	return controllers.HandleCreateUser(c)
}

// GetUser returns a single user
func (s *APIServer) GetUser(c *fiber.Ctx) error {
	return controllers.HandleGetUser(c)
}

// GetUserUsage returns the billing-period usage for a user
func (s *APIServer) GetUserUsage(c *fiber.Ctx) error {
	return controllers.HandleGetUserUsage(c)
}

// GetJob returns the state of a background job
func (s *APIServer) GetJob(c *fiber.Ctx) error {
	return controllers.HandleGetJob(c)
}

// GetStats returns aggregate sync statistics
func (s *APIServer) GetStats(c *fiber.Ctx) error {
	return controllers.HandleGetStats(c)
}

// RegisterHandlers attaches all v1 routes to the given router group
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	router.Post("/connections", s.PostConnection)
	router.Get("/connections", s.GetConnections)
	router.Get("/connections/:id", s.GetConnection)
	router.Delete("/connections/:id", s.DeleteConnection)
	router.Get("/connections/:id/publications", s.GetConnectionPublications)
	router.Put("/connections/:id/publications", s.PutConnectionPublications)
	router.Post("/connections/:id/sync", s.PostConnectionSync)
	router.Get("/connections/:id/history", s.GetConnectionHistory)
	router.Get("/connections/:id/subscribers", s.GetConnectionSubscribers)

	router.Post("/users", s.PostUser)
	router.Get("/users/:id", s.GetUser)
	router.Get("/users/:id/usage", s.GetUserUsage)
	router.Get("/jobs/:id", s.GetJob)
	router.Get("/stats", s.GetStats)
}
