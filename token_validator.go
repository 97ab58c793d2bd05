package auth

import "context"

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (Claims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(ctx context.Context, token string) (Claims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(ctx context.Context, token string) (Claims, error) {
	if f == nil {
		return nil, newError(KindConfigurationError, "token validator is not configured")
	}
	return f(ctx, token)
}

// MultiTokenValidator tries validators in order until one succeeds.
// Signature and structure failures move on to the next validator; any other
// rejection is final. The last failure is returned when all validators fail.
type MultiTokenValidator struct {
	validators []TokenValidator
}

// NewMultiTokenValidator filters nil validators and returns a composite validator.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	filtered := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiTokenValidator{validators: filtered}
}

// Validate satisfies the TokenValidator interface.
func (m *MultiTokenValidator) Validate(ctx context.Context, token string) (Claims, error) {
	var lastErr error
	for _, v := range m.validators {
		claims, err := v.Validate(ctx, token)
		if err == nil {
			return claims, nil
		}
		if IsKind(err, KindInvalidSignature) || IsMalformedError(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, newError(KindMalformedToken, "no validator accepted the token")
}
