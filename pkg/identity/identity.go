// Package identity verifies bearer tokens and manages accounts held by the
// external identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
	"github.com/meemli/meemli-api/pkg/config"
)

var (
	// ErrInvalidToken is returned when a bearer token cannot be verified.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrAccountNotFound is returned when the provider holds no account for a uid.
	ErrAccountNotFound = errors.New("identity: account not found")
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("identity: email already in use")
)

// Provider is the subset of identity provider operations the API needs.
type Provider interface {
	Verify(ctx context.Context, token string) (*models.Principal, error)
	CreateAccount(ctx context.Context, email string) (*models.IdentityAccount, error)
	UpdateEmail(ctx context.Context, uid, email string) error
	GetAccount(ctx context.Context, uid string) (*models.IdentityAccount, error)
}

// New builds the provider selected by cfg.Provider.
func New(ctx context.Context, cfg config.IdentityConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case config.IdentityFirebase:
		return NewFirebase(ctx, cfg, logger)
	case config.IdentityLocal:
		logger.Warn("using local identity provider; accounts are kept in memory")
		return NewLocal(cfg.LocalSecret, cfg.LocalIssuer, cfg.LocalTokenTTL), nil
	default:
		return nil, fmt.Errorf("%w: got %q", config.ErrUnknownIdentity, cfg.Provider)
	}
}
