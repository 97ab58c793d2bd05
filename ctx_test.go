package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-jwtauth"
)

func TestClaimsContext(t *testing.T) {
	ctx := context.Background()

	_, ok := auth.GetClaims(ctx)
	assert.False(t, ok)
	assert.Equal(t, "", auth.SubjectFromContext(ctx))

	ctx = auth.WithClaimsContext(ctx, auth.Claims{"sub": "42"})

	claims, ok := auth.GetClaims(ctx)
	assert.True(t, ok)
	assert.Equal(t, "42", claims.Subject())
	assert.Equal(t, "42", auth.SubjectFromContext(ctx))
}

func TestIdentityContext(t *testing.T) {
	user := &testUser{ID: "1"}
	ctx := auth.WithIdentityContext(context.Background(), user)

	identity, ok := auth.IdentityFromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, user, identity)

	_, ok = auth.IdentityFromContext(context.Background())
	assert.False(t, ok)
}
