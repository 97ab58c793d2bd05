package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Authenticator verifies caller supplied credentials and returns the identity
// passed downstream. An Authenticator that also implements PayloadExtender
// is used as the extender when the Auther has none configured.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Identity, error)
}

// DefaultAuthenticator delegates verification to a CredentialVerifier. Embed
// it to add an ExtendPayload method while keeping the verification logic.
type DefaultAuthenticator struct {
	verifier       CredentialVerifier
	requiredFields []string
	logger         Logger
}

// NewAuthenticator returns an Authenticator backed by verifier.
func NewAuthenticator(verifier CredentialVerifier) *DefaultAuthenticator {
	return &DefaultAuthenticator{
		verifier: verifier,
		logger:   defaultLogger(),
	}
}

// WithRequiredFields makes Authenticate reject credentials where any of the
// fields is missing or empty, before the verifier runs.
func (a *DefaultAuthenticator) WithRequiredFields(fields ...string) *DefaultAuthenticator {
	a.requiredFields = append([]string(nil), fields...)
	return a
}

func (a *DefaultAuthenticator) WithLogger(logger Logger) *DefaultAuthenticator {
	a.logger = normalizeLogger(logger)
	return a
}

// Authenticate satisfies the Authenticator interface.
func (a *DefaultAuthenticator) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	if a.verifier == nil {
		return nil, newError(KindConfigurationError, "credential verifier is not configured")
	}

	if err := a.checkRequiredFields(creds); err != nil {
		a.logger.Info("Authenticate rejected credentials payload", "error", err)
		return nil, err
	}

	identity, err := a.verifier.VerifyCredentials(ctx, creds)
	if err != nil {
		var richErr *Error
		if goerrors.As(err, &richErr) && richErr.TextCode != "" {
			return nil, richErr
		}
		return nil, wrapAuthFailure(err)
	}

	if isNilIdentity(identity) {
		return nil, newError(KindAuthenticationFailed, "identity not found")
	}

	return identity, nil
}

func (a *DefaultAuthenticator) checkRequiredFields(creds Credentials) error {
	for _, field := range a.requiredFields {
		if err := validation.Validate(creds[field], validation.Required); err != nil {
			return WrapError(KindAuthenticationFailed, err, "missing "+field)
		}
	}
	return nil
}

// AuthenticationFailed builds the error a CredentialVerifier returns to
// reject credentials. reason is shown to the caller.
func AuthenticationFailed(reason string) *Error {
	if reason == "" {
		reason = "authentication failed"
	}
	return NewError(KindAuthenticationFailed, reason)
}

func wrapAuthFailure(err error) *Error {
	return WrapError(KindAuthenticationFailed, err, err.Error())
}
