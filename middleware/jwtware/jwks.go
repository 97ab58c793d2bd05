package jwtware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	auth "github.com/goliatone/go-jwtauth"
)

// JWKSValidator verifies tokens signed by a third party publishing its keys
// as JWK sets. Registered claims are checked by the wrapped ClaimsValidator.
type JWKSValidator struct {
	keyfunc    jwt.Keyfunc
	claims     *auth.ClaimsValidator
	algorithms []string
	logger     auth.Logger
	now        func() time.Time
	close      func()
}

// JWKSOption customises a JWKSValidator.
type JWKSOption func(*JWKSValidator)

// WithJWKSLogger sets the logger used for background refresh failures.
func WithJWKSLogger(logger auth.Logger) JWKSOption {
	return func(v *JWKSValidator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithJWKSAlgorithms restricts the accepted signing algorithms.
func WithJWKSAlgorithms(algs ...string) JWKSOption {
	return func(v *JWKSValidator) {
		v.algorithms = append([]string(nil), algs...)
	}
}

// WithJWKSClock overrides the time source used for claim validation.
func WithJWKSClock(now func() time.Time) JWKSOption {
	return func(v *JWKSValidator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewJWKSValidator fetches the given JWK set URLs and keeps them refreshed in
// the background until Close is called.
func NewJWKSValidator(claims *auth.ClaimsValidator, urls []string, opts ...JWKSOption) (*JWKSValidator, error) {
	if claims == nil {
		return nil, errors.New("claims validator is required")
	}
	if len(urls) == 0 {
		return nil, errors.New("at least one JWK set URL is required")
	}

	v := &JWKSValidator{
		claims: claims,
		logger: auth.NoopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	if len(urls) == 1 {
		jwks, err := keyfunc.Get(urls[0], keyfuncOptions(nil, v.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to get JWT URL: %w", err)
		}
		v.keyfunc = jwks.Keyfunc
		v.close = jwks.EndBackground
		return v, nil
	}

	multi, err := multiKeyfunc(nil, urls, v.logger)
	if err != nil {
		return nil, err
	}
	v.keyfunc = multi.Keyfunc
	v.close = func() {
		for _, set := range multi.JWKSets() {
			set.EndBackground()
		}
	}

	return v, nil
}

// Validate satisfies auth.TokenValidator.
func (v *JWKSValidator) Validate(_ context.Context, raw string) (auth.Claims, error) {
	opts := []jwt.ParserOption{jwt.WithoutClaimsValidation(), jwt.WithJSONNumber()}
	if len(v.algorithms) > 0 {
		opts = append(opts, jwt.WithValidMethods(v.algorithms))
	}

	mapClaims := jwt.MapClaims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(raw, mapClaims, v.keyfunc); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, auth.WrapError(auth.KindMalformedToken, err, "token is malformed")
		}
		return nil, auth.WrapError(auth.KindInvalidSignature, err, "signature verification failed")
	}

	claims := auth.NormalizeClaims(mapClaims)
	return v.claims.Validate(claims, v.now())
}

// Close stops the background refresh.
func (v *JWKSValidator) Close() {
	if v.close != nil {
		v.close()
	}
}

func multiKeyfunc(givenKeys map[string]keyfunc.GivenKey, jwtSetUrls []string, logger auth.Logger) (*keyfunc.MultipleJWKS, error) {
	opts := keyfuncOptions(givenKeys, logger)
	m := make(map[string]keyfunc.Options, len(jwtSetUrls))
	for _, url := range jwtSetUrls {
		m[url] = opts
	}
	mopts := keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	}
	multi, err := keyfunc.GetMultiple(m, mopts)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWT URLs: %w", err)
	}
	return multi, nil
}

func keyfuncOptions(givenKeys map[string]keyfunc.GivenKey, logger auth.Logger) keyfunc.Options {
	if logger == nil {
		logger = auth.NoopLogger()
	}
	return keyfunc.Options{
		GivenKeys: givenKeys,
		RefreshErrorHandler: func(err error) {
			logger.Warn("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
}
