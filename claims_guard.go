package auth

// requiredClaims lists, in check order, the claims a token must carry.
type requiredClaims []string

func newRequiredClaims(cfg Config) requiredClaims {
	names := []string{ClaimExpiresAt}

	if cfg.GetClaimIssuedAt() {
		names = append(names, ClaimIssuedAt)
	}
	if cfg.GetClaimNotBefore() {
		names = append(names, ClaimNotBefore)
	}
	if cfg.GetIssuer() != "" {
		names = append(names, ClaimIssuer)
	}
	if cfg.GetAudience() != "" {
		names = append(names, ClaimAudience)
	}
	if cfg.GetClaimTokenID() {
		names = append(names, ClaimTokenID)
	}

	for _, extra := range cfg.GetRequiredClaims() {
		if extra == "" || contains(names, extra) {
			continue
		}
		names = append(names, extra)
	}

	return requiredClaims(names)
}

func newRefreshRequiredClaims(cfg Config) requiredClaims {
	names := []string{ClaimExpiresAt, ClaimSubject, ClaimTokenID, ClaimTokenType}
	if cfg.GetIssuer() != "" {
		names = append(names, ClaimIssuer)
	}
	if cfg.GetAudience() != "" {
		names = append(names, ClaimAudience)
	}
	return requiredClaims(names)
}

// check returns a MissingRegisteredClaim error naming the first absent claim.
func (r requiredClaims) check(claims Claims) error {
	for _, name := range r {
		if v, ok := claims[name]; !ok || v == nil {
			return missingClaimError(name)
		}
	}
	return nil
}

func (r requiredClaims) names() []string {
	return append([]string(nil), r...)
}

func contains(list []string, s string) bool {
	for _, el := range list {
		if el == s {
			return true
		}
	}
	return false
}
