package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/meemli/meemli-api/internal/models"
)

// LocalClaims is the payload of tokens minted by Local.
type LocalClaims struct {
	Email string `json:"email"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Local is an in-process provider signing HS256 tokens, for development and tests.
type Local struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	accounts map[string]models.IdentityAccount
}

// NewLocal constructs a Local provider.
func NewLocal(secret, issuer string, ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Local{
		secret:   []byte(secret),
		issuer:   issuer,
		ttl:      ttl,
		now:      time.Now,
		accounts: make(map[string]models.IdentityAccount),
	}
}

// Issue mints a signed token for uid.
func (l *Local) Issue(uid, email string, admin bool) (string, error) {
	issuedAt := l.now()
	claims := LocalClaims{
		Email: email,
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    l.issuer,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(l.ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token minted by Issue.
func (l *Local) Verify(_ context.Context, tokenString string) (*models.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &LocalClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return l.secret, nil
	}, jwt.WithIssuer(l.issuer), jwt.WithTimeFunc(l.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*LocalClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &models.Principal{UID: claims.Subject, Email: claims.Email, Admin: claims.Admin}, nil
}

// CreateAccount stores a new account with a generated uid.
func (l *Local) CreateAccount(_ context.Context, email string) (*models.IdentityAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.emailTakenLocked(email, "") {
		return nil, ErrEmailTaken
	}
	account := models.IdentityAccount{UID: strings.ReplaceAll(uuid.NewString(), "-", ""), Email: email}
	l.accounts[account.UID] = account
	return &account, nil
}

// UpdateEmail changes the email of an existing account.
func (l *Local) UpdateEmail(_ context.Context, uid, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, ok := l.accounts[uid]
	if !ok {
		return ErrAccountNotFound
	}
	if l.emailTakenLocked(email, uid) {
		return ErrEmailTaken
	}
	account.Email = email
	l.accounts[uid] = account
	return nil
}

// GetAccount looks up an account by uid.
func (l *Local) GetAccount(_ context.Context, uid string) (*models.IdentityAccount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	account, ok := l.accounts[uid]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (l *Local) emailTakenLocked(email, exceptUID string) bool {
	for uid, account := range l.accounts {
		if uid != exceptUID && strings.EqualFold(account.Email, email) {
			return true
		}
	}
	return false
}
