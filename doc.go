// Package auth issues, refreshes and validates signed session tokens (JWT)
// with pluggable credential verification and pluggable claim augmentation.
//
// Issuance pipeline:
//   - Auther.Issue verifies credentials through an Authenticator, builds the
//     registered claims (iat, exp and optionally nbf, iss, aud, jti, sub),
//     hands them to a PayloadExtender and signs the result with the Codec.
//     Required claims are checked again after extension so an extender cannot
//     drop a claim the validator later insists on.
//   - Every failure is an *Error carrying a Kind and the Stage reached. Kinds
//     map to HTTP status codes through Error.StatusCode.
//
// Payload extension:
//   - ExtenderStrategy fixes the call shape when it is built: PayloadOnly
//     receives the claims, PayloadAndIdentity also receives the identity.
//   - An Authenticator that also implements PayloadExtender, for example a
//     struct embedding *DefaultAuthenticator, is used as the extender when the
//     Auther has none configured.
//
// Verification:
//   - Codec.Decode only checks structure and signature. ClaimsValidator
//     enforces presence, exp, nbf, iss and aud, in that order.
//
// Refresh tokens:
//   - When enabled, Issue also returns a refresh token whose jti is recorded
//     in a RefreshStore. Refresh exchanges it for a new access token and
//     Revoke forgets it.
//
// Activity sinks:
//   - ActivitySink receives audit events for issued, rejected and refreshed
//     tokens. Sinks run best-effort (errors are logged) and never see token
//     strings.
package auth
