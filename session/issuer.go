package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/jwt"
)

var (
	// ErrInvalidSession covers expired, malformed, tampered and wrong-kind
	// tokens.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrAccountUnavailable is returned by Refresh when the account behind a
	// valid refresh token is missing or inactive.
	ErrAccountUnavailable = errors.New("account unavailable")
)

// AccountFinder resolves an account by id. account.Repository satisfies it.
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*account.Account, error)
}

// Token is a signed bearer credential and its expiry.
type Token struct {
	Value     string
	Kind      jwt.Kind
	ExpiresAt time.Time
}

// Issuer mints and validates session tokens.
type Issuer struct {
	tokens   *jwt.Manager
	accounts AccountFinder
}

func NewIssuer(tokens *jwt.Manager, accounts AccountFinder) *Issuer {
	return &Issuer{tokens: tokens, accounts: accounts}
}

// IssueAccessToken mints a short-lived access token for accountID.
func (i *Issuer) IssueAccessToken(accountID string, now time.Time) (Token, error) {
	return i.issue(jwt.KindAccess, accountID, now)
}

// IssueRefreshToken mints a long-lived refresh token for accountID. Callers
// only request one for remembered sessions.
func (i *Issuer) IssueRefreshToken(accountID string, now time.Time) (Token, error) {
	return i.issue(jwt.KindRefresh, accountID, now)
}

func (i *Issuer) issue(kind jwt.Kind, accountID string, now time.Time) (Token, error) {
	value, expiresAt, err := i.tokens.Create(kind, accountID, now)
	if err != nil {
		return Token{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return Token{Value: value, Kind: kind, ExpiresAt: expiresAt}, nil
}

// ValidateAccess returns the account id carried by a valid access token.
func (i *Issuer) ValidateAccess(token string, now time.Time) (string, error) {
	claims, err := i.tokens.Parse(jwt.KindAccess, token, now)
	if err != nil {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}

// Refresh validates refreshToken, re-resolves its account and mints a new
// access token. The refresh token itself is returned to no one and stays
// valid until it expires.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string, now time.Time) (Token, *account.Account, error) {
	claims, err := i.tokens.Parse(jwt.KindRefresh, refreshToken, now)
	if err != nil {
		return Token{}, nil, ErrInvalidSession
	}

	a, err := i.accounts.FindByID(ctx, claims.Subject)
	if errors.Is(err, account.ErrNotFound) {
		return Token{}, nil, ErrAccountUnavailable
	}
	if err != nil {
		return Token{}, nil, fmt.Errorf("resolve account: %w", err)
	}
	if !a.IsActive {
		return Token{}, a, ErrAccountUnavailable
	}

	access, err := i.IssueAccessToken(a.ID, now)
	if err != nil {
		return Token{}, a, err
	}
	return access, a, nil
}
