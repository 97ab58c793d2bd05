package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-jwtauth"
)

func newCodec(t *testing.T, opts auth.Options) *auth.Codec {
	t.Helper()
	cfg, err := auth.NewConfig(opts)
	require.NoError(t, err)
	codec, err := auth.NewCodec(cfg)
	require.NoError(t, err)
	return codec
}

func registeredClaims() auth.Claims {
	return auth.Claims{
		"iat": fixedNow.Unix(),
		"nbf": fixedNow.Unix(),
		"exp": fixedNow.Add(time.Hour).Unix(),
		"sub": "1",
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newCodec(t, auth.Options{Secret: testSecret})

	token, err := codec.Encode(registeredClaims())
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	decoded, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, registeredClaims(), decoded)
}

func TestCodecEncodeIsDeterministic(t *testing.T) {
	codec := newCodec(t, auth.Options{Secret: testSecret})

	first, err := codec.Encode(registeredClaims())
	require.NoError(t, err)
	second, err := codec.Encode(registeredClaims())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCodecAlgorithms(t *testing.T) {
	_, rsaPair := rsaKeys(t)
	_, ecPair := ecKeys(t)
	_, edPair := edKeys(t)

	tests := []struct {
		name string
		opts auth.Options
	}{
		{name: "HS384", opts: auth.Options{Algorithm: "HS384", Secret: testSecret}},
		{name: "HS512", opts: auth.Options{Algorithm: "HS512", Secret: testSecret}},
		{name: "RS256", opts: auth.Options{Algorithm: "RS256", PrivateKey: rsaPair.private}},
		{name: "PS256", opts: auth.Options{Algorithm: "PS256", PrivateKey: rsaPair.private}},
		{name: "ES256", opts: auth.Options{Algorithm: "ES256", PrivateKey: ecPair.private}},
		{name: "EdDSA", opts: auth.Options{Algorithm: "EdDSA", PrivateKey: edPair.private}},
		{name: "RS256 key in secret", opts: auth.Options{Algorithm: "RS256", Secret: rsaPair.private}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := newCodec(t, tt.opts)

			token, err := codec.Encode(registeredClaims())
			require.NoError(t, err)

			decoded, err := codec.Decode(token)
			require.NoError(t, err)
			assert.Equal(t, registeredClaims(), decoded)
		})
	}
}

func TestCodecPublicKeyOnly(t *testing.T) {
	_, pair := rsaKeys(t)
	signer := newCodec(t, auth.Options{Algorithm: "RS256", PrivateKey: pair.private})
	verifier := newCodec(t, auth.Options{Algorithm: "RS256", PublicKey: pair.public})

	token, err := signer.Encode(registeredClaims())
	require.NoError(t, err)

	decoded, err := verifier.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "1", decoded.Subject())

	_, err = verifier.Encode(registeredClaims())
	assert.True(t, auth.IsKind(err, auth.KindEncodingError))
}

func TestCodecDecodeFailures(t *testing.T) {
	codec := newCodec(t, auth.Options{Secret: testSecret})
	other := newCodec(t, auth.Options{Secret: "different"})
	hs512 := newCodec(t, auth.Options{Secret: testSecret, Algorithm: "HS512"})

	foreign, err := other.Encode(registeredClaims())
	require.NoError(t, err)
	wrongAlg, err := hs512.Encode(registeredClaims())
	require.NoError(t, err)
	valid, err := codec.Encode(registeredClaims())
	require.NoError(t, err)
	parts := strings.Split(valid, ".")

	tests := []struct {
		name  string
		token string
		kind  auth.Kind
	}{
		{name: "different secret", token: foreign, kind: auth.KindInvalidSignature},
		{name: "algorithm not accepted", token: wrongAlg, kind: auth.KindInvalidSignature},
		{name: "tampered signature", token: parts[0] + "." + parts[1] + ".c2lnbmF0dXJl", kind: auth.KindInvalidSignature},
		{name: "not a token", token: "not-a-token", kind: auth.KindMalformedToken},
		{name: "empty", token: "", kind: auth.KindMalformedToken},
		{name: "bad base64", token: "a.b.c", kind: auth.KindMalformedToken},
		{name: "payload not json", token: parts[0] + ".bm90LWpzb24." + parts[2], kind: auth.KindMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := codec.Decode(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.Equal(t, tt.kind, auth.KindOf(err))
		})
	}
}

func TestCodecDecodeSkipsTemporalChecks(t *testing.T) {
	codec := newCodec(t, auth.Options{Secret: testSecret})

	token, err := codec.Encode(auth.Claims{"exp": int64(1000), "nbf": fixedNow.Add(time.Hour).Unix()})
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), claims["exp"])
}

func TestCodecKeyIDAndVerifyKeys(t *testing.T) {
	previous := newCodec(t, auth.Options{Secret: "old-secret", KeyID: "2025"})
	current := newCodec(t, auth.Options{
		Secret:     testSecret,
		KeyID:      "2026",
		VerifyKeys: map[string]string{"2025": "old-secret"},
	})

	token, err := current.Encode(registeredClaims())
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, "2026", parsed.Header["kid"])

	_, err = current.Decode(token)
	require.NoError(t, err)

	rotated, err := previous.Encode(registeredClaims())
	require.NoError(t, err)
	_, err = current.Decode(rotated)
	require.NoError(t, err)

	unknown := newCodec(t, auth.Options{Secret: "old-secret", KeyID: "1999"})
	stray, err := unknown.Encode(registeredClaims())
	require.NoError(t, err)
	_, err = current.Decode(stray)
	assert.Equal(t, auth.KindInvalidSignature, auth.KindOf(err))
}

func TestCodecEncodeNilClaims(t *testing.T) {
	codec := newCodec(t, auth.Options{Secret: testSecret})

	_, err := codec.Encode(nil)
	assert.True(t, auth.IsKind(err, auth.KindEncodingError))
}

func TestCodecEncodeUnserializableClaim(t *testing.T) {
	codec := newCodec(t, auth.Options{Secret: testSecret})

	_, err := codec.Encode(auth.Claims{"exp": int64(1), "ch": make(chan int)})
	assert.True(t, auth.IsKind(err, auth.KindEncodingError))
}

func TestNewCodecRejectsBadKeys(t *testing.T) {
	cfg := &auth.Options{Algorithm: "RS256", PrivateKey: "not a pem", Algorithms: []string{"RS256"}}
	_, err := auth.NewCodec(cfg)
	assert.True(t, auth.IsKind(err, auth.KindConfigurationError))

	cfg = &auth.Options{Algorithm: "none", Secret: testSecret}
	_, err = auth.NewCodec(cfg)
	assert.True(t, auth.IsKind(err, auth.KindEncodingError))
}

func TestCodecInteropWithJWX(t *testing.T) {
	key, pair := rsaKeys(t)
	codec := newCodec(t, auth.Options{Algorithm: "RS256", PrivateKey: pair.private})

	t.Run("external verifier accepts issued token", func(t *testing.T) {
		token, err := codec.Encode(auth.Claims{
			"sub":  "1",
			"iat":  time.Now().Unix(),
			"exp":  time.Now().Add(time.Hour).Unix(),
			"role": "admin",
		})
		require.NoError(t, err)

		parsed, err := jwxjwt.Parse([]byte(token), jwxjwt.WithKey(jwa.RS256, &key.PublicKey))
		require.NoError(t, err)
		assert.Equal(t, "1", parsed.Subject())

		role, ok := parsed.Get("role")
		require.True(t, ok)
		assert.Equal(t, "admin", role)
	})

	t.Run("externally issued token decodes", func(t *testing.T) {
		jwkPriv, err := jwk.FromRaw(key)
		require.NoError(t, err)

		tok, err := jwxjwt.NewBuilder().
			Subject("2").
			IssuedAt(fixedNow).
			Expiration(fixedNow.Add(time.Hour)).
			Claim("scope", "read").
			Build()
		require.NoError(t, err)

		signed, err := jwxjwt.Sign(tok, jwxjwt.WithKey(jwa.RS256, jwkPriv))
		require.NoError(t, err)

		claims, err := codec.Decode(string(signed))
		require.NoError(t, err)
		assert.Equal(t, auth.Claims{
			"sub":   "2",
			"iat":   fixedNow.Unix(),
			"exp":   fixedNow.Add(time.Hour).Unix(),
			"scope": "read",
		}, claims)
	})
}
