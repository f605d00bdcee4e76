package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/subsyncio/subsync/app/controllers"
	"github.com/subsyncio/subsync/app/repository"
	"github.com/subsyncio/subsync/internal/pkg/billing"
	"github.com/subsyncio/subsync/internal/pkg/cache"
	"github.com/subsyncio/subsync/internal/pkg/connectors"
	"github.com/subsyncio/subsync/internal/pkg/database"
	"github.com/subsyncio/subsync/internal/pkg/env"
	"github.com/subsyncio/subsync/internal/pkg/espsync"
	"github.com/subsyncio/subsync/internal/pkg/jobqueue"
	"github.com/subsyncio/subsync/internal/pkg/mail"
	"github.com/subsyncio/subsync/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Graceful shutdown on SIGINT/SIGTERM
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	secret := env.GetEnv("CREDENTIAL_SECRET", "")
	if secret == "" {
		log.Fatal("CREDENTIAL_SECRET is not set")
	}

	// Billing collaborator; nil provider/reporter means usage metering runs
	// against the cached subscription only.
	var provider billing.SubscriptionProvider
	var reporter billing.UsageReporter
	if stripe := billing.NewStripeClientFromEnv(); stripe.IsConfigured() {
		provider = stripe
		reporter = stripe
	}
	usageService := billing.NewService(repos, provider, reporter)

	gate := espsync.NewOAuthGate(repos.Connection, espsync.NewOAuth2Refresher(), secret)
	syncService := espsync.NewService(
		repos,
		connectors.Default(),
		gate,
		espsync.UsageUpdaterFunc(func(ctx context.Context, userID uint) error {
			_, err := usageService.UpdateUsage(ctx, userID)
			return err
		}),
		secret,
	)

	controllers.InitializeSyncController(syncService)
	controllers.InitializeUsageController(usageService)

	jobqueue.SetSyncHandler(func(ctx context.Context, connectionID uint) error {
		_, err := syncService.SyncSubscribers(ctx, connectionID)
		if err == nil {
			return nil
		}
		if espsync.IsReconnectRequired(err) {
			notifyReconnectRequired(repos, connectionID)
		}
		if espsync.KindOf(err) != espsync.KindRemoteProvider && espsync.KindOf(err) != espsync.KindInternal {
			// Not-found, rejected selections and revoked credentials will not
			// recover on their own; retrying them only repeats the failure.
			return jobqueue.Permanent(err)
		}
		return err
	})
	jobqueue.SetUsageHandler(func(ctx context.Context, userID uint) error {
		_, err := usageService.UpdateUsage(ctx, userID)
		return err
	})
	jobqueue.GetManager().Start()

	app := fiber.New(fiber.Config{
		AppName: "subsync",
	})

	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app)

	return app
}

// notifyReconnectRequired emails the connection owner when their credential
// was revoked. Failures only get logged.
func notifyReconnectRequired(repos *repository.Repositories, connectionID uint) {
	conn, err := repos.Connection.GetByID(connectionID)
	if err != nil {
		log.Printf("reconnect notification: loading connection %d failed: %v", connectionID, err)
		return
	}
	user, err := repos.User.GetByID(conn.UserID)
	if err != nil {
		log.Printf("reconnect notification: loading user %d failed: %v", conn.UserID, err)
		return
	}
	if err := mail.SendReconnectNotification(user.Email, conn.EspType, conn.ID); err != nil {
		log.Printf("reconnect notification: sending mail to user %d failed: %v", user.ID, err)
	}
}
