package espsync

import (
	"context"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/app/repository"
	"github.com/subsyncio/subsync/internal/pkg/connectors"
	"github.com/subsyncio/subsync/internal/pkg/security"
)

// attemptState tracks where a gated call is in its retry lifecycle. The state
// is carried explicitly so the one-refresh bound holds even if the refreshed
// token is rejected again.
type attemptState int

const (
	attemptInitial attemptState = iota
	attemptAfterRefresh
)

// RefreshedToken is the credential material a refresh produces. RefreshToken
// may be empty when the provider keeps the old one valid.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// TokenRefresher exchanges a refresh token for fresh credential material. The
// OAuth credential-exchange plumbing behind it is an external collaborator.
type TokenRefresher interface {
	Refresh(ctx context.Context, conn *models.EspConnection, refreshToken string) (*RefreshedToken, error)
}

// OAuthGate wraps OAuth-authenticated connector calls with a
// single-retry-after-refresh policy.
type OAuthGate struct {
	connections repository.ConnectionRepository
	refresher   TokenRefresher
	secret      string
}

// NewOAuthGate creates the gate. The secret is the credential-store
// encryption passphrase.
func NewOAuthGate(connections repository.ConnectionRepository, refresher TokenRefresher, secret string) *OAuthGate {
	return &OAuthGate{connections: connections, refresher: refresher, secret: secret}
}

// CallWithRefresh runs op with the connection's decrypted access token. On an
// auth-class failure it refreshes the token once, rotates the stored
// credential, reloads the connection and retries; conn is updated in place so
// later publications in the same run use the rotated credential. A second
// auth-class failure, or a refresh failure, surfaces as a reconnect-required
// error; everything else passes through unmodified.
func (g *OAuthGate) CallWithRefresh(ctx context.Context, conn *models.EspConnection, op func(token string) error) error {
	return g.call(ctx, conn, op, attemptInitial)
}

func (g *OAuthGate) call(ctx context.Context, conn *models.EspConnection, op func(token string) error, state attemptState) error {
	token, err := security.DecryptCredential(conn.AccessTokenEnc, g.secret)
	if err != nil {
		return newSyncError(KindConfiguration, "connection is missing a usable access token", err)
	}

	opErr := op(token)
	if opErr == nil {
		return nil
	}
	if !connectors.IsAuthError(opErr) {
		return opErr
	}
	if state == attemptAfterRefresh {
		g.markReconnectRequired(conn)
		return newSyncError(KindUnauthorized, "access token rejected after refresh, reconnect required", opErr)
	}

	fiberlog.Infof("[OAuthGate] Access token rejected for connection %d, refreshing", conn.ID)
	if err := g.refresh(ctx, conn); err != nil {
		g.markReconnectRequired(conn)
		return newSyncError(KindUnauthorized, "token refresh failed, reconnect required", err)
	}

	return g.call(ctx, conn, op, attemptAfterRefresh)
}

func (g *OAuthGate) refresh(ctx context.Context, conn *models.EspConnection) error {
	refreshToken, err := security.DecryptCredential(conn.RefreshTokenEnc, g.secret)
	if err != nil {
		return err
	}

	fresh, err := g.refresher.Refresh(ctx, conn, refreshToken)
	if err != nil {
		return err
	}

	accessEnc, err := security.EncryptCredential(fresh.AccessToken, g.secret)
	if err != nil {
		return err
	}
	refreshEnc := ""
	if fresh.RefreshToken != "" {
		refreshEnc, err = security.EncryptCredential(fresh.RefreshToken, g.secret)
		if err != nil {
			return err
		}
	}

	if err := g.connections.UpdateCredentials(conn.ID, accessEnc, refreshEnc, fresh.ExpiresAt); err != nil {
		return err
	}

	// Reload from the store rather than trusting local state, so the rest of
	// the run carries the same credential the store does.
	reloaded, err := g.connections.GetByID(conn.ID)
	if err != nil {
		return err
	}
	*conn = *reloaded
	return nil
}

func (g *OAuthGate) markReconnectRequired(conn *models.EspConnection) {
	if err := g.connections.UpdateStatus(conn.ID, models.ConnectionStatusReconnectRequired); err != nil {
		fiberlog.Errorf("[OAuthGate] Failed to flag connection %d for reconnect: %v", conn.ID, err)
	}
}
