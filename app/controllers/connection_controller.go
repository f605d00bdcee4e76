package controllers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/app/repository"
	"github.com/subsyncio/subsync/internal/pkg/connectors"
	"github.com/subsyncio/subsync/internal/pkg/env"
	"github.com/subsyncio/subsync/internal/pkg/jobqueue"
	"github.com/subsyncio/subsync/internal/pkg/security"
)

var validate = validator.New()

// CreateConnectionRequest is the payload for POST /api/v1/connections
type CreateConnectionRequest struct {
	UserID                 uint       `json:"user_id" validate:"required"`
	EspType                string     `json:"esp_type" validate:"required"`
	AuthMethod             string     `json:"auth_method" validate:"required,oneof=api_key oauth"`
	APIKey                 string     `json:"api_key"`
	AccessToken            string     `json:"access_token"`
	RefreshToken           string     `json:"refresh_token"`
	TokenExpiresAt         *time.Time `json:"token_expires_at"`
	SelectedPublicationIDs []string   `json:"selected_publication_ids"`
}

func credentialSecret() string {
	return env.GetEnv("CREDENTIAL_SECRET", "")
}

// HandleCreateConnection creates a new ESP connection with encrypted credentials.
// The provided credential is validated against the remote provider before the
// connection is stored.
func HandleCreateConnection(c *fiber.Ctx) error {
	var req CreateConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	connector, ok := connectors.Default().Resolve(req.EspType)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "Unknown ESP type: " + req.EspType,
		})
	}

	if req.AuthMethod == models.AuthMethodOAuth {
		if _, ok := connector.(connectors.OAuthConnector); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "bad_request",
				"message": req.EspType + " does not support OAuth authentication",
			})
		}
	}

	plainCredential := req.APIKey
	if req.AuthMethod == models.AuthMethodOAuth {
		plainCredential = req.AccessToken
	}
	if strings.TrimSpace(plainCredential) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing credential for auth method " + req.AuthMethod})
	}

	valid, err := connector.ValidateCredential(c.UserContext(), plainCredential, "")
	if err != nil {
		fiberlog.Errorf("[ConnectionController] Credential validation against %s failed: %v", req.EspType, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "remote_provider", "message": "Provider could not be reached for credential validation"})
	}
	if !valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Credential rejected by provider"})
	}

	secret := credentialSecret()
	conn := &models.EspConnection{
		UserID:     req.UserID,
		EspType:    req.EspType,
		AuthMethod: req.AuthMethod,
		Status:     models.ConnectionStatusActive,
	}

	if req.AuthMethod == models.AuthMethodOAuth {
		conn.AccessTokenEnc, err = security.EncryptCredential(req.AccessToken, secret)
		if err == nil && req.RefreshToken != "" {
			conn.RefreshTokenEnc, err = security.EncryptCredential(req.RefreshToken, secret)
		}
		conn.TokenExpiresAt = req.TokenExpiresAt
	} else {
		conn.APIKeyEnc, err = security.EncryptCredential(req.APIKey, secret)
	}
	if err != nil {
		fiberlog.Errorf("[ConnectionController] Failed to encrypt credential: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to protect credential"})
	}

	if len(req.SelectedPublicationIDs) > 0 {
		if err := conn.SetSelectedPublicationIDs(req.SelectedPublicationIDs); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to encode publication selection"})
		}
	}

	repo := repository.GetGlobalFactory().GetConnectionRepository()
	if err := repo.Create(conn); err != nil {
		fiberlog.Errorf("[ConnectionController] Failed to create connection: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create connection"})
	}

	return c.Status(fiber.StatusCreated).JSON(connectionResponse(conn))
}

// HandleGetConnection returns one connection by id
func HandleGetConnection(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid connection id"})
	}

	conn, err := repository.GetGlobalFactory().GetConnectionRepository().GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Connection not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load connection"})
	}

	return c.JSON(connectionResponse(conn))
}

// HandleListConnections lists connections, filtered by user_id when given
func HandleListConnections(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetConnectionRepository()

	userID, err := strconv.ParseUint(c.Query("user_id", "0"), 10, 32)
	if err != nil || userID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "user_id query parameter is required"})
	}

	conns, err := repo.ListByUser(uint(userID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list connections"})
	}

	items := make([]fiber.Map, 0, len(conns))
	for i := range conns {
		items = append(items, connectionResponse(&conns[i]))
	}
	return c.JSON(fiber.Map{"connections": items})
}

// HandleDeleteConnection removes a connection with its subscribers and history
func HandleDeleteConnection(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid connection id"})
	}

	repo := repository.GetGlobalFactory().GetConnectionRepository()
	conn, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Connection not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load connection"})
	}

	if err := repo.Delete(id); err != nil {
		fiberlog.Errorf("[ConnectionController] Failed to delete connection %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete connection"})
	}

	// The user's live subscriber totals changed; recompute usage in the background.
	if _, err := jobqueue.EnqueueUsageRecalc(conn.UserID); err != nil {
		fiberlog.Errorf("[ConnectionController] Failed to enqueue usage recalc for user %d: %v", conn.UserID, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// UpdatePublicationsRequest is the payload for PUT /api/v1/connections/:id/publications
type UpdatePublicationsRequest struct {
	SelectedPublicationIDs []string `json:"selected_publication_ids" validate:"required,min=1"`
}

// HandleUpdatePublications replaces the publication selection of a connection
func HandleUpdatePublications(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid connection id"})
	}

	var req UpdatePublicationsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetConnectionRepository()
	conn, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Connection not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load connection"})
	}

	if err := conn.SetSelectedPublicationIDs(req.SelectedPublicationIDs); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to encode publication selection"})
	}
	if err := repo.Update(conn); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update connection"})
	}

	return c.JSON(connectionResponse(conn))
}

func connectionResponse(conn *models.EspConnection) fiber.Map {
	return fiber.Map{
		"id":                       conn.ID,
		"user_id":                  conn.UserID,
		"esp_type":                 conn.EspType,
		"auth_method":              conn.AuthMethod,
		"status":                   conn.Status,
		"selected_publication_ids": conn.SelectedPublicationIDs(),
		"last_sync_status":         conn.LastSyncStatus,
		"last_synced_at":           conn.LastSyncedAt,
		"created_at":               conn.CreatedAt,
	}
}

func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
