package cli

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"jwtauth"}, args...))
	return out.String(), err
}

func TestSignVerifyRoundTrip(t *testing.T) {
	token, err := run(t, "", "--secret", "abc123", "sign", "--sub", "42", "--claim", "role=admin", "--claim", "level=3")
	require.NoError(t, err)
	token = strings.TrimSpace(token)
	require.Len(t, strings.Split(token, "."), 3)

	out, err := run(t, "", "--secret", "abc123", "verify", token)
	require.NoError(t, err)

	claims := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(out), &claims))
	assert.Equal(t, "42", claims["sub"])
	assert.Equal(t, "admin", claims["role"])
	assert.Equal(t, float64(3), claims["level"])

	out, err = run(t, token+"\n", "--secret", "abc123", "verify", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"sub": "42"`)
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	token, err := run(t, "", "--secret", "abc123", "sign", "--sub", "42")
	require.NoError(t, err)

	_, err = run(t, "", "--secret", "other", "verify", strings.TrimSpace(token))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidSignature")
}

func TestVerifyExpired(t *testing.T) {
	token, err := run(t, "", "--secret", "abc123", "sign", "--sub", "42", "--claim", "exp=1000")
	require.NoError(t, err)

	_, err = run(t, "", "--secret", "abc123", "verify", strings.TrimSpace(token))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ExpiredToken")
}

func TestInspect(t *testing.T) {
	token, err := run(t, "", "--secret", "abc123", "sign", "--sub", "42")
	require.NoError(t, err)

	out, err := run(t, "", "inspect", strings.TrimSpace(token))
	require.NoError(t, err)

	var parsed struct {
		Header map[string]any `json:"header"`
		Claims map[string]any `json:"claims"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "HS256", parsed.Header["alg"])
	assert.Equal(t, "42", parsed.Claims["sub"])

	_, err = run(t, "", "inspect", "garbage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MalformedToken")
}

func TestSignRejectsBadClaim(t *testing.T) {
	_, err := run(t, "", "--secret", "abc123", "sign", "--claim", "novalue")
	require.Error(t, err)
}

func serveContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()

	users := filepath.Join(t.TempDir(), "users.txt")
	require.NoError(t, os.WriteFile(users, []byte("user1:abcxyz\n"), 0o600))

	app := App()
	app.ErrWriter = io.Discard
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range app.Flags {
		require.NoError(t, f.Apply(set))
	}
	for _, f := range ServeCommand().Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(append([]string{"--secret", "abc123", "--users", users}, args...)))

	return cli.NewContext(app, set, nil)
}

func login(t *testing.T, app *fiber.App, path string) map[string]any {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"username":"user1","password":"abcxyz"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestNewServer(t *testing.T) {
	server, err := NewServer(serveContext(t))
	require.NoError(t, err)
	app := server.WrappedRouter()

	login(t, app, "/auth")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `jwtauth_operations_total{operation="issue",outcome="ok"} 1`)
}

func TestNewServerWithSQLiteRefreshStore(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "jwtauth.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("refresh_token_enabled: true\nuser_id: user_id\n"), 0o600))

	dsn := "file:" + filepath.Join(dir, "tokens.db")
	server, err := NewServer(serveContext(t, "--config", cfg, "--sqlite", dsn, "--prefix", "/api/auth"))
	require.NoError(t, err)
	app := server.WrappedRouter()

	pair := login(t, app, "/api/auth")
	refresh, ok := pair["refresh_token"].(string)
	require.True(t, ok)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader(`{"refresh_token":"`+refresh+`"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewServerRejectsTwoRefreshStores(t *testing.T) {
	_, err := NewServer(serveContext(t, "--redis", "127.0.0.1:6379", "--sqlite", "file::memory:"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestNewServerAcceptsJWKSTokens(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub, err := jwk.PublicKeyOf(key)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "external"))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	payload, err := json.Marshal(set)
	require.NoError(t, err)

	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(jwks.Close)

	server, err := NewServer(serveContext(t, "--jwks-url", jwks.URL, "--jwks-issuer", "https://idp.test"))
	require.NoError(t, err)
	app := server.WrappedRouter()

	me := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	now := time.Now()
	external := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "idp-user",
		"iss": "https://idp.test",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	external.Header["kid"] = "external"
	signed, err := external.SignedString(key)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, me(signed))

	local := login(t, app, "/auth")
	assert.Equal(t, http.StatusOK, me(local["access_token"].(string)))

	assert.Equal(t, http.StatusUnauthorized, me("not.a.token"))
}
