package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-jwtauth"
)

func validatorReturning(claims auth.Claims, err error, calls *int) auth.TokenValidator {
	return auth.TokenValidatorFunc(func(context.Context, string) (auth.Claims, error) {
		*calls++
		return claims, err
	})
}

func TestMultiTokenValidator(t *testing.T) {
	ctx := context.Background()

	t.Run("falls through signature failures", func(t *testing.T) {
		var first, second int
		v := auth.NewMultiTokenValidator(
			validatorReturning(nil, auth.NewError(auth.KindInvalidSignature, "bad signature"), &first),
			nil,
			validatorReturning(auth.Claims{"sub": "1"}, nil, &second),
		)

		claims, err := v.Validate(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, "1", claims.Subject())
		assert.Equal(t, 1, first)
		assert.Equal(t, 1, second)
	})

	t.Run("claim rejection is final", func(t *testing.T) {
		var first, second int
		v := auth.NewMultiTokenValidator(
			validatorReturning(nil, auth.NewError(auth.KindExpiredToken, "expired"), &first),
			validatorReturning(auth.Claims{"sub": "1"}, nil, &second),
		)

		_, err := v.Validate(ctx, "token")
		assert.True(t, auth.IsTokenExpiredError(err))
		assert.Equal(t, 0, second)
	})

	t.Run("returns last failure", func(t *testing.T) {
		var first, second int
		v := auth.NewMultiTokenValidator(
			validatorReturning(nil, auth.NewError(auth.KindInvalidSignature, "bad signature"), &first),
			validatorReturning(nil, auth.NewError(auth.KindMalformedToken, "malformed"), &second),
		)

		_, err := v.Validate(ctx, "token")
		assert.True(t, auth.IsMalformedError(err))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := auth.NewMultiTokenValidator().Validate(ctx, "token")
		assert.True(t, auth.IsMalformedError(err))
	})
}

func TestMultiTokenValidatorAcrossKeys(t *testing.T) {
	current := newTestAuther(t)
	legacy := newTestAuther(t, func(o *auth.Options) { o.Secret = "legacy-secret" })

	pair, err := legacy.Issue(context.Background(), validCreds())
	require.NoError(t, err)

	v := auth.NewMultiTokenValidator(current, legacy)
	claims, err := v.Validate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject())
}

func TestTokenValidatorFuncNil(t *testing.T) {
	var fn auth.TokenValidatorFunc
	_, err := fn.Validate(context.Background(), "token")
	assert.True(t, auth.IsKind(err, auth.KindConfigurationError))
}
