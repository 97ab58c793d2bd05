package jwtware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-jwtauth"
)

type warnRecorder struct {
	auth.Logger
	warnings []string
}

func (r *warnRecorder) Warn(format string, args ...any) {
	r.warnings = append(r.warnings, format)
}

func TestKeyfuncOptionsRefreshErrorHandlerIsSafe(t *testing.T) {
	opts := keyfuncOptions(nil, nil)
	require.NotNil(t, opts.RefreshErrorHandler)
	require.NotPanics(t, func() {
		opts.RefreshErrorHandler(errors.New("refresh failed"))
	})

	require.Equal(t, time.Hour, opts.RefreshInterval)
	require.Equal(t, 5*time.Minute, opts.RefreshRateLimit)
	require.Equal(t, 10*time.Second, opts.RefreshTimeout)
	require.True(t, opts.RefreshUnknownKID)
}

func TestKeyfuncOptionsLogsRefreshErrors(t *testing.T) {
	logger := &warnRecorder{Logger: auth.NoopLogger()}
	opts := keyfuncOptions(nil, logger)

	opts.RefreshErrorHandler(errors.New("refresh failed"))
	require.Len(t, logger.warnings, 1)
}

func TestCheckRequiredClaims(t *testing.T) {
	err := checkRequiredClaims(auth.Claims{"sub": "1"}, []string{"sub", "role"})
	require.True(t, auth.IsKind(err, auth.KindMissingRegisteredClaim))
	require.Equal(t, "role", auth.ClaimOf(err))

	require.NoError(t, checkRequiredClaims(auth.Claims{"sub": "1"}, nil))
}

func TestTokenFromAuthorization(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		scheme string
		token  string
	}{
		{"bearer token", "Bearer abc.def.ghi", "Bearer", "abc.def.ghi"},
		{"scheme is case insensitive", "bearer abc", "Bearer", "abc"},
		{"surrounding spaces trimmed", "Bearer   abc  ", "Bearer", "abc"},
		{"custom scheme", "Token abc", "Token", "abc"},
		{"scheme glued to token", "Bearerabc", "Bearer", ""},
		{"scheme only", "Bearer", "Bearer", ""},
		{"scheme and space only", "Bearer ", "Bearer", ""},
		{"blank token", "Bearer    ", "Bearer", ""},
		{"other scheme", "Basic dXNlcjpwYXNz", "Bearer", ""},
		{"empty header", "", "Bearer", ""},
		{"empty scheme", "Bearer abc", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := tokenFromAuthorization(tt.value, tt.scheme)
			if tt.token == "" {
				require.ErrorIs(t, err, ErrJWTMissingOrMalformed)
				require.Empty(t, token)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.token, token)
		})
	}
}
