package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/subsyncio/subsync/internal/pkg/cache"
	"github.com/subsyncio/subsync/internal/pkg/database"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "subsync", "status": "ok"})
	})

	app.Get("/health", handleHealth)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

// handleHealth reports database and cache reachability
func handleHealth(c *fiber.Ctx) error {
	status := fiber.StatusOK
	dbOK := true
	cacheOK := true

	db := database.GetDB()
	if db == nil {
		dbOK = false
	} else if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
		dbOK = false
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := cache.GetClient().Ping(ctx).Err(); err != nil {
		cacheOK = false
	}

	if !dbOK || !cacheOK {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"database": dbOK,
		"cache":    cacheOK,
	})
}
