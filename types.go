package auth

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the logging contract used across the package. Messages either
// carry printf verbs or a list of key/value pairs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated principal. The core only
// reads it, through its map form.
type Identity interface {
	ToMap() map[string]any
}

// Credentials is the consumer supplied login payload, e.g.
// {"username": "...", "password": "..."}. It is passed through untouched.
type Credentials map[string]any

// String returns the value stored under key when it is a string.
func (c Credentials) String(key string) string {
	if c == nil {
		return ""
	}
	s, _ := c[key].(string)
	return s
}

// CredentialVerifier checks credentials and returns the matching identity.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, creds Credentials) (Identity, error)
}

// CredentialVerifierFunc adapts a function into a CredentialVerifier.
type CredentialVerifierFunc func(ctx context.Context, creds Credentials) (Identity, error)

// VerifyCredentials satisfies the CredentialVerifier interface.
func (f CredentialVerifierFunc) VerifyCredentials(ctx context.Context, creds Credentials) (Identity, error) {
	if f == nil {
		return nil, newError(KindConfigurationError, "credential verifier is not configured")
	}
	return f(ctx, creds)
}

// IdentityRetriever loads the identity a refresh token was issued for.
type IdentityRetriever interface {
	RetrieveIdentity(ctx context.Context, subject string) (Identity, error)
}

// IdentityRetrieverFunc adapts a function into an IdentityRetriever.
type IdentityRetrieverFunc func(ctx context.Context, subject string) (Identity, error)

// RetrieveIdentity satisfies the IdentityRetriever interface.
func (f IdentityRetrieverFunc) RetrieveIdentity(ctx context.Context, subject string) (Identity, error) {
	if f == nil {
		return nil, newError(KindConfigurationError, "identity retriever is not configured")
	}
	return f(ctx, subject)
}

// MapIdentity is an Identity backed by a plain map.
type MapIdentity map[string]any

// ToMap returns the identity attributes.
func (m MapIdentity) ToMap() map[string]any {
	return map[string]any(m)
}

// isNilIdentity reports a missing identity, including a typed nil pointer or
// map stored in the interface. Zero valued identities are not missing.
func isNilIdentity(identity Identity) bool {
	if identity == nil {
		return true
	}
	v := reflect.ValueOf(identity)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map:
		return v.IsNil()
	}
	return false
}

// Config exposes the read-only settings shared by all components.
type Config interface {
	GetSecret() string
	GetPrivateKey() string
	GetPublicKey() string
	GetAlgorithm() string
	GetAlgorithms() []string
	GetKeyID() string
	GetVerifyKeys() map[string]string
	GetAccessTokenName() string
	GetRefreshTokenName() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetRefreshTokenEnabled() bool
	GetClaimNotBefore() bool
	GetNotBeforeDelta() time.Duration
	GetClaimIssuedAt() bool
	GetClaimTokenID() bool
	GetIssuer() string
	GetAudience() string
	GetLeeway() time.Duration
	GetRequiredClaims() []string
	GetUserIDKey() string
}

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger adapts a logrus logger to Logger.
func NewLogrusLogger(l logrus.FieldLogger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return logrusLogger{entry: l.WithField("component", "auth")}
}

func defaultLogger() Logger {
	return NewLogrusLogger(logrus.StandardLogger())
}

func (l logrusLogger) Debug(format string, args ...any) {
	l.with(format, args).Debug(message(format, args))
}

func (l logrusLogger) Info(format string, args ...any) {
	l.with(format, args).Info(message(format, args))
}

func (l logrusLogger) Warn(format string, args ...any) {
	l.with(format, args).Warn(message(format, args))
}

func (l logrusLogger) Error(format string, args ...any) {
	l.with(format, args).Error(message(format, args))
}

func (l logrusLogger) with(format string, args []any) *logrus.Entry {
	if isPrintf(format) || len(args) == 0 {
		return l.entry
	}
	fields := logrus.Fields{}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 < len(args) {
			fields[key] = args[i+1]
		} else {
			fields[key] = "(missing)"
		}
	}
	return l.entry.WithFields(fields)
}

func message(format string, args []any) string {
	if isPrintf(format) {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func isPrintf(format string) bool {
	return strings.Contains(format, "%")
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger discards every message.
func NoopLogger() Logger {
	return noopLogger{}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defaultLogger()
	}
	return l
}
