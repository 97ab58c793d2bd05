package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClaimsBuilder produces the base registered claim set for a new token.
type ClaimsBuilder struct {
	accessTTL      time.Duration
	refreshTTL     time.Duration
	claimNotBefore bool
	notBeforeDelta time.Duration
	claimTokenID   bool
	issuer         string
	audience       string
	userIDKey      string
}

// NewClaimsBuilder captures the settings it needs from cfg.
func NewClaimsBuilder(cfg Config) *ClaimsBuilder {
	return &ClaimsBuilder{
		accessTTL:      cfg.GetAccessTokenTTL(),
		refreshTTL:     cfg.GetRefreshTokenTTL(),
		claimNotBefore: cfg.GetClaimNotBefore(),
		notBeforeDelta: cfg.GetNotBeforeDelta(),
		claimTokenID:   cfg.GetClaimTokenID(),
		issuer:         cfg.GetIssuer(),
		audience:       cfg.GetAudience(),
		userIDKey:      cfg.GetUserIDKey(),
	}
}

// Build returns a fresh access claim set issued at now. Identity attributes
// are only read when a user id key is configured, to fill sub.
func (b *ClaimsBuilder) Build(now time.Time, identity Identity) Claims {
	claims := Claims{
		ClaimIssuedAt:  now.Unix(),
		ClaimExpiresAt: now.Add(b.accessTTL).Unix(),
	}

	if b.claimNotBefore {
		claims[ClaimNotBefore] = now.Add(b.notBeforeDelta).Unix()
	}

	if b.issuer != "" {
		claims[ClaimIssuer] = b.issuer
	}

	if b.audience != "" {
		claims[ClaimAudience] = b.audience
	}

	if b.claimTokenID {
		claims[ClaimTokenID] = uuid.NewString()
	}

	if sub := b.subject(identity); sub != "" {
		claims[ClaimSubject] = sub
	}

	return claims
}

// BuildRefresh returns the claim set of a refresh token for subject.
func (b *ClaimsBuilder) BuildRefresh(now time.Time, subject string) Claims {
	claims := Claims{
		ClaimIssuedAt:  now.Unix(),
		ClaimExpiresAt: now.Add(b.refreshTTL).Unix(),
		ClaimSubject:   subject,
		ClaimTokenID:   uuid.NewString(),
		ClaimTokenType: TokenTypeRefresh,
	}

	if b.issuer != "" {
		claims[ClaimIssuer] = b.issuer
	}

	if b.audience != "" {
		claims[ClaimAudience] = b.audience
	}

	return claims
}

func (b *ClaimsBuilder) subject(identity Identity) string {
	if b.userIDKey == "" || identity == nil {
		return ""
	}

	attrs := identity.ToMap()
	if attrs == nil {
		return ""
	}

	raw, ok := attrs[b.userIDKey]
	if !ok || raw == nil {
		return ""
	}

	return fmt.Sprint(raw)
}
