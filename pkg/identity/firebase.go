package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/meemli/meemli-api/internal/models"
	"github.com/meemli/meemli-api/pkg/config"
)

// Firebase verifies Firebase ID tokens and manages Firebase Auth users.
type Firebase struct {
	client *auth.Client
	logger *zap.Logger
}

// NewFirebase initialises the Firebase Admin SDK. Without a credentials file the
// SDK falls back to application default credentials.
func NewFirebase(ctx context.Context, cfg config.IdentityConfig, logger *zap.Logger) (*Firebase, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &Firebase{client: client, logger: logger}, nil
}

// Verify checks an ID token and returns the caller it identifies.
func (f *Firebase) Verify(ctx context.Context, token string) (*models.Principal, error) {
	decoded, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		f.logger.Debug("firebase token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	principal := &models.Principal{UID: decoded.UID}
	if email, ok := decoded.Claims["email"].(string); ok {
		principal.Email = email
	}
	if admin, ok := decoded.Claims["admin"].(bool); ok {
		principal.Admin = admin
	}
	return principal, nil
}

// CreateAccount registers a passwordless account for email.
func (f *Firebase) CreateAccount(ctx context.Context, email string) (*models.IdentityAccount, error) {
	record, err := f.client.CreateUser(ctx, (&auth.UserToCreate{}).Email(email))
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create firebase user: %w", err)
	}
	return &models.IdentityAccount{UID: record.UID, Email: record.Email}, nil
}

// UpdateEmail changes the email of an existing account.
func (f *Firebase) UpdateEmail(ctx context.Context, uid, email string) error {
	if _, err := f.client.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Email(email)); err != nil {
		switch {
		case auth.IsUserNotFound(err):
			return ErrAccountNotFound
		case auth.IsEmailAlreadyExists(err):
			return ErrEmailTaken
		}
		return fmt.Errorf("update firebase user: %w", err)
	}
	return nil
}

// GetAccount looks up an account by uid.
func (f *Firebase) GetAccount(ctx context.Context, uid string) (*models.IdentityAccount, error) {
	record, err := f.client.GetUser(ctx, uid)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get firebase user: %w", err)
	}
	return &models.IdentityAccount{UID: record.UID, Email: record.Email}, nil
}
