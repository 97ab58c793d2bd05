package auth_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-jwtauth"
)

const testSecret = "abc123"

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type testUser struct {
	ID       string
	Username string
}

func (u *testUser) ToMap() map[string]any {
	return map[string]any{"user_id": u.ID, "username": u.Username}
}

// valueUser is an identity stored by value, its zero value is a valid user.
type valueUser struct {
	ID int
}

func (u valueUser) ToMap() map[string]any {
	return map[string]any{"user_id": u.ID}
}

// userVerifier accepts user1/abcxyz.
func userVerifier() auth.CredentialVerifier {
	return auth.CredentialVerifierFunc(func(_ context.Context, creds auth.Credentials) (auth.Identity, error) {
		if creds.String("username") == "" || creds.String("password") == "" {
			return nil, auth.AuthenticationFailed("Missing username or password.")
		}
		if creds.String("username") != "user1" {
			return nil, auth.AuthenticationFailed("User not found.")
		}
		if creds.String("password") != "abcxyz" {
			return nil, auth.AuthenticationFailed("Password is incorrect.")
		}
		return &testUser{ID: "1", Username: "user1"}, nil
	})
}

func validCreds() auth.Credentials {
	return auth.Credentials{"username": "user1", "password": "abcxyz"}
}

func testConfig(t *testing.T, mutate ...func(*auth.Options)) *auth.Options {
	t.Helper()
	opts := auth.Options{
		Secret:    testSecret,
		UserIDKey: "user_id",
	}
	for _, m := range mutate {
		m(&opts)
	}
	cfg, err := auth.NewConfig(opts)
	require.NoError(t, err)
	return cfg
}

func newTestAuther(t *testing.T, mutate ...func(*auth.Options)) *auth.Auther {
	t.Helper()
	a, err := auth.NewAuther(auth.NewAuthenticator(userVerifier()), testConfig(t, mutate...))
	require.NoError(t, err)
	return a.WithLogger(auth.NoopLogger()).WithClock(fixedClock)
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *recordingSink) last() auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type observation struct {
	operation string
	outcome   string
}

type recordingMetrics struct {
	mu  sync.Mutex
	obs []observation
}

func (m *recordingMetrics) Observe(operation, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, observation{operation: operation, outcome: outcome})
}

type keyPair struct {
	private string
	public  string
}

func encodePEM(t *testing.T, blockType string, der []byte) string {
	t.Helper()
	return string(pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}))
}

func publicPEM(t *testing.T, pub any) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return encodePEM(t, "PUBLIC KEY", der)
}

func privatePEM(t *testing.T, key any) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return encodePEM(t, "PRIVATE KEY", der)
}

func rsaKeys(t *testing.T) (*rsa.PrivateKey, keyPair) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key, keyPair{
		private: encodePEM(t, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)),
		public:  publicPEM(t, &key.PublicKey),
	}
}

func ecKeys(t *testing.T) (*ecdsa.PrivateKey, keyPair) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return key, keyPair{
		private: encodePEM(t, "EC PRIVATE KEY", der),
		public:  publicPEM(t, &key.PublicKey),
	}
}

func edKeys(t *testing.T) (ed25519.PrivateKey, keyPair) {
	t.Helper()
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return key, keyPair{
		private: privatePEM(t, key),
		public:  publicPEM(t, pub),
	}
}
