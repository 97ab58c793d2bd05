package auth

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Kind names a failure class. It is carried as the text code of the error and
// surfaced verbatim to transport collaborators (for example as the
// "exception" field of an HTTP response).
type Kind string

const (
	KindAuthenticationFailed      Kind = "AuthenticationFailed"
	KindInvalidCredentialsPayload Kind = "InvalidCredentialsPayload"
	KindEncodingError             Kind = "EncodingError"
	KindInvalidSignature          Kind = "InvalidSignature"
	KindMalformedToken            Kind = "MalformedToken"
	KindExpiredToken              Kind = "ExpiredToken"
	KindTokenNotYetValid          Kind = "TokenNotYetValid"
	KindMissingRegisteredClaim    Kind = "MissingRegisteredClaim"
	KindInvalidIssuer             Kind = "InvalidIssuer"
	KindInvalidAudience           Kind = "InvalidAudience"
	KindInvalidTokenType          Kind = "InvalidTokenType"
	KindRefreshTokenRevoked       Kind = "RefreshTokenRevoked"
	KindRefreshDisabled           Kind = "RefreshDisabled"
	KindRefreshStoreError         Kind = "RefreshStoreError"
	KindExtensionFailed           Kind = "ExtensionFailed"
	KindConfigurationError        Kind = "ConfigurationError"
	KindRequestCancelled          Kind = "RequestCancelled"
)

// StatusClientClosedRequest is reported when the caller went away before the
// pipeline completed.
const StatusClientClosedRequest = 499

const (
	MetaStage = "stage"
	MetaClaim = "claim"
)

// Error is the failure type returned by every component of the token
// pipeline. Its TextCode holds the Kind; the stage reached and the offending
// claim, when known, live in Metadata.
type Error = goerrors.Error

type kindClass struct {
	category goerrors.Category
	code     int
}

var kindClasses = map[Kind]kindClass{
	KindAuthenticationFailed:      {goerrors.CategoryAuth, goerrors.CodeUnauthorized},
	KindInvalidCredentialsPayload: {goerrors.CategoryBadInput, goerrors.CodeBadRequest},
	KindEncodingError:             {goerrors.CategoryInternal, goerrors.CodeInternal},
	KindInvalidSignature:          {goerrors.CategoryAuth, goerrors.CodeUnauthorized},
	KindMalformedToken:            {goerrors.CategoryAuth, goerrors.CodeUnauthorized},
	KindExpiredToken:              {goerrors.CategoryAuth, goerrors.CodeUnauthorized},
	KindTokenNotYetValid:          {goerrors.CategoryAuth, goerrors.CodeUnauthorized},
	KindMissingRegisteredClaim:    {goerrors.CategoryInternal, goerrors.CodeInternal},
	KindInvalidIssuer:             {goerrors.CategoryAuth, goerrors.CodeUnauthorized},
	KindInvalidAudience:           {goerrors.CategoryAuth, goerrors.CodeUnauthorized},
	KindInvalidTokenType:          {goerrors.CategoryAuth, goerrors.CodeUnauthorized},
	KindRefreshTokenRevoked:       {goerrors.CategoryAuth, goerrors.CodeUnauthorized},
	KindRefreshDisabled:           {goerrors.CategoryNotFound, goerrors.CodeNotFound},
	KindRefreshStoreError:         {goerrors.CategoryExternal, http.StatusServiceUnavailable},
	KindExtensionFailed:           {goerrors.CategoryInternal, goerrors.CodeInternal},
	KindConfigurationError:        {goerrors.CategoryInternal, goerrors.CodeInternal},
	KindRequestCancelled:          {goerrors.CategoryOperation, StatusClientClosedRequest},
}

func classOf(kind Kind) kindClass {
	if class, ok := kindClasses[kind]; ok {
		return class
	}
	return kindClass{goerrors.CategoryInternal, goerrors.CodeInternal}
}

// NewError returns an error of the given kind, with the category and status
// code that kind maps to.
func NewError(kind Kind, message string) *Error {
	class := classOf(kind)
	return goerrors.New(message, class.category).
		WithTextCode(string(kind)).
		WithCode(class.code)
}

// WrapError is NewError keeping err as the source.
func WrapError(kind Kind, err error, message string) *Error {
	richErr := NewError(kind, message)
	richErr.Source = err
	return richErr
}

func newError(kind Kind, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

func claimError(kind Kind, claim, message string) *Error {
	return NewError(kind, message).WithMetadata(map[string]any{MetaClaim: claim})
}

func missingClaimError(claim string) *Error {
	return claimError(KindMissingRegisteredClaim, claim, fmt.Sprintf("missing registered claim: %s", claim))
}

// MissingClaim builds the MissingRegisteredClaim error for claim.
func MissingClaim(claim string) *Error {
	return missingClaimError(claim)
}

// WithStage returns a copy of err annotated with the pipeline stage.
func WithStage(err *Error, stage Stage) *Error {
	if err == nil {
		return nil
	}
	return err.Clone().WithMetadata(map[string]any{MetaStage: stage})
}

// AsError extracts the *Error from err. Untyped errors are reported as
// server side EncodingError so they are never mistaken for client mistakes.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var richErr *Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr
	}
	return WrapError(KindEncodingError, err, "unexpected error")
}

// KindOf returns the kind of err, or the empty string when err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Kind(AsError(err).TextCode)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var richErr *Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return Kind(richErr.TextCode) == kind
}

// StageOf returns the stage err was raised at, if recorded.
func StageOf(err error) Stage {
	var richErr *Error
	if !goerrors.As(err, &richErr) {
		return ""
	}
	stage, _ := richErr.Metadata[MetaStage].(Stage)
	return stage
}

// ClaimOf returns the claim err is about, if any.
func ClaimOf(err error) string {
	var richErr *Error
	if !goerrors.As(err, &richErr) {
		return ""
	}
	claim, _ := richErr.Metadata[MetaClaim].(string)
	return claim
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	richErr := AsError(err)
	if richErr.Code == 0 {
		return classOf(Kind(richErr.TextCode)).code
	}
	return richErr.Code
}

// IsServerError reports whether err should be blamed on the server rather
// than on the caller.
func IsServerError(err error) bool {
	return StatusOf(err) >= http.StatusInternalServerError
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return IsKind(err, KindExpiredToken)
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	return IsKind(err, KindMalformedToken)
}

// IsRejection reports whether err means the presented token was refused and
// the caller has to authenticate again.
func IsRejection(err error) bool {
	switch KindOf(err) {
	case KindInvalidSignature, KindMalformedToken, KindExpiredToken, KindTokenNotYetValid,
		KindMissingRegisteredClaim, KindInvalidIssuer, KindInvalidAudience, KindInvalidTokenType,
		KindRefreshTokenRevoked:
		return true
	}
	return false
}
