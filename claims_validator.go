package auth

import (
	"fmt"
	"time"
)

// ClaimsValidator enforces the registered claim rules on decoded claims.
// Checks run in order and stop at the first failure: token type, required
// claims present, exp not passed, nbf reached, iss matches, aud matches.
type ClaimsValidator struct {
	required requiredClaims
	refresh  bool
	leeway   time.Duration
	issuer   string
	audience string
}

// NewClaimsValidator returns the validator for access tokens. The required
// claims follow the issuance settings of cfg.
func NewClaimsValidator(cfg Config) *ClaimsValidator {
	return &ClaimsValidator{
		required: newRequiredClaims(cfg),
		leeway:   cfg.GetLeeway(),
		issuer:   cfg.GetIssuer(),
		audience: cfg.GetAudience(),
	}
}

// NewRefreshClaimsValidator returns the validator for refresh tokens. Refresh
// tokens are never extended, so only the claims BuildRefresh emits are
// required: exp, sub, jti and typ, plus iss and aud when configured.
func NewRefreshClaimsValidator(cfg Config) *ClaimsValidator {
	return &ClaimsValidator{
		required: newRefreshRequiredClaims(cfg),
		refresh:  true,
		leeway:   cfg.GetLeeway(),
		issuer:   cfg.GetIssuer(),
		audience: cfg.GetAudience(),
	}
}

// RequiredClaims returns the claim names every token must carry.
func (v *ClaimsValidator) RequiredClaims() []string {
	return v.required.names()
}

// RequirePresent only runs the presence check.
func (v *ClaimsValidator) RequirePresent(claims Claims) error {
	return v.required.check(claims)
}

// Validate checks claims at time now and returns them unchanged on success.
func (v *ClaimsValidator) Validate(claims Claims, now time.Time) (Claims, error) {
	if err := v.checkType(claims); err != nil {
		return nil, err
	}

	if err := v.required.check(claims); err != nil {
		return nil, err
	}

	exp, ok, valid := claims.NumericDate(ClaimExpiresAt)
	if ok && !valid {
		return nil, invalidDateError(ClaimExpiresAt)
	}
	if ok && !now.Before(exp.Add(v.leeway)) {
		return nil, claimError(KindExpiredToken, ClaimExpiresAt,
			fmt.Sprintf("token expired at %s", exp.UTC().Format(time.RFC3339)))
	}

	nbf, ok, valid := claims.NumericDate(ClaimNotBefore)
	if ok && !valid {
		return nil, invalidDateError(ClaimNotBefore)
	}
	if ok && now.Add(v.leeway).Before(nbf) {
		return nil, claimError(KindTokenNotYetValid, ClaimNotBefore,
			fmt.Sprintf("token not valid before %s", nbf.UTC().Format(time.RFC3339)))
	}

	if _, ok, valid := claims.NumericDate(ClaimIssuedAt); ok && !valid {
		return nil, invalidDateError(ClaimIssuedAt)
	}

	if v.issuer != "" && claims.Issuer() != v.issuer {
		return nil, claimError(KindInvalidIssuer, ClaimIssuer, "invalid issuer")
	}

	if v.audience != "" && !contains(claims.Audience(), v.audience) {
		return nil, claimError(KindInvalidAudience, ClaimAudience, "invalid audience")
	}

	return claims, nil
}

func (v *ClaimsValidator) checkType(claims Claims) error {
	isRefresh := claims.String(ClaimTokenType) == TokenTypeRefresh
	if v.refresh && !isRefresh {
		return claimError(KindInvalidTokenType, ClaimTokenType, "access token used as refresh token")
	}
	if !v.refresh && isRefresh {
		return claimError(KindInvalidTokenType, ClaimTokenType, "refresh token used as access token")
	}
	return nil
}

func invalidDateError(claim string) *Error {
	return claimError(KindMalformedToken, claim, fmt.Sprintf("claim %s is not a numeric date", claim))
}
