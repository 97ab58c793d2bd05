package auth

import (
	"context"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TokenPair is the result of a successful issuance or refresh. It encodes to
// JSON using the configured token field names.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time

	accessTokenName  string
	refreshTokenName string
}

// ToMap returns the response body keyed by the configured field names.
func (p *TokenPair) ToMap() map[string]any {
	out := map[string]any{p.accessName(): p.AccessToken}
	if p.RefreshToken != "" {
		out[p.refreshName()] = p.RefreshToken
	}
	return out
}

// MarshalJSON satisfies json.Marshaler.
func (p *TokenPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToMap())
}

func (p *TokenPair) accessName() string {
	if p.accessTokenName == "" {
		return DefaultAccessTokenName
	}
	return p.accessTokenName
}

func (p *TokenPair) refreshName() string {
	if p.refreshTokenName == "" {
		return DefaultRefreshTokenName
	}
	return p.refreshTokenName
}

// Auther wires credential verification, claim building, payload extension,
// signing and validation into request level operations. It holds no per
// request state and is safe for concurrent use once configured.
type Auther struct {
	cfg           Config
	authenticator Authenticator
	extender      PayloadExtender
	builder       *ClaimsBuilder
	codec         *Codec
	validator     *ClaimsValidator
	refreshRules  *ClaimsValidator
	refreshStore  RefreshStore
	retriever     IdentityRetriever
	logger        Logger
	activitySink  ActivitySink
	metrics       MetricsRecorder
	now           func() time.Time
}

// NewAuther returns an Auther using authenticator to verify credentials.
func NewAuther(authenticator Authenticator, cfg Config) (*Auther, error) {
	if cfg == nil {
		return nil, newError(KindConfigurationError, "configuration is required")
	}

	codec, err := NewCodec(cfg)
	if err != nil {
		return nil, err
	}

	a := &Auther{
		cfg:           cfg,
		authenticator: authenticator,
		builder:       NewClaimsBuilder(cfg),
		codec:         codec,
		validator:     NewClaimsValidator(cfg),
		refreshRules:  NewRefreshClaimsValidator(cfg),
		logger:        defaultLogger(),
		activitySink:  noopActivitySink{},
		metrics:       noopMetricsRecorder{},
		now:           time.Now,
	}

	if cfg.GetRefreshTokenEnabled() {
		a.refreshStore = NewMemoryRefreshStore()
	}

	return a, nil
}

// New validates opts and returns an Auther whose credentials are checked by
// verifier.
func New(opts Options, verifier CredentialVerifier) (*Auther, error) {
	cfg, err := NewConfig(opts)
	if err != nil {
		return nil, err
	}
	return NewAuther(NewAuthenticator(verifier), cfg)
}

// WithPayloadExtender sets the extender invoked before signing. It takes
// precedence over an extender implemented by the Authenticator.
func (s *Auther) WithPayloadExtender(extender PayloadExtender) *Auther {
	s.extender = extender
	return s
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting token events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithMetrics configures a MetricsRecorder.
func (s *Auther) WithMetrics(recorder MetricsRecorder) *Auther {
	s.metrics = normalizeMetricsRecorder(recorder)
	return s
}

// WithRefreshStore replaces the in memory refresh store.
func (s *Auther) WithRefreshStore(store RefreshStore) *Auther {
	if store != nil {
		s.refreshStore = store
	}
	return s
}

// WithIdentityRetriever sets how refresh finds the identity behind a subject.
func (s *Auther) WithIdentityRetriever(retriever IdentityRetriever) *Auther {
	s.retriever = retriever
	return s
}

// WithClock overrides the time source, mostly for tests. The in memory
// refresh store follows the same clock.
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now == nil {
		return s
	}
	s.now = now
	if mem, ok := s.refreshStore.(*MemoryRefreshStore); ok {
		mem.WithClock(now)
	}
	return s
}

// Config returns the configuration the Auther was built with.
func (s *Auther) Config() Config {
	return s.cfg
}

// Codec returns the codec used to sign and verify tokens.
func (s *Auther) Codec() *Codec {
	return s.codec
}

// Validator returns the claims validator.
func (s *Auther) Validator() *ClaimsValidator {
	return s.validator
}

// Issue authenticates creds and returns signed tokens for the identity.
func (s *Auther) Issue(ctx context.Context, creds Credentials) (*TokenPair, error) {
	start := s.now()
	p := newPipeline(OperationIssue, s.logger)

	pair, identity, err := s.issue(ctx, p, creds)
	s.finishIssue(ctx, p, identity, pair, err, start)
	if err != nil {
		return nil, p.fail(err)
	}
	return pair, nil
}

// IssueForIdentity skips credential verification and issues tokens for an
// identity the caller already trusts.
func (s *Auther) IssueForIdentity(ctx context.Context, identity Identity) (*TokenPair, error) {
	start := s.now()
	p := newPipeline(OperationIssue, s.logger)
	p.advance(StageCredentialsVerified)

	var (
		pair *TokenPair
		err  error
	)
	if isNilIdentity(identity) {
		err = newError(KindAuthenticationFailed, "identity not found")
	} else {
		pair, err = s.issueTokens(ctx, p, identity, true)
	}
	s.finishIssue(ctx, p, identity, pair, err, start)
	if err != nil {
		return nil, p.fail(err)
	}
	return pair, nil
}

func (s *Auther) issue(ctx context.Context, p *pipeline, creds Credentials) (*TokenPair, Identity, error) {
	if err := checkContext(ctx); err != nil {
		return nil, nil, err
	}

	if s.authenticator == nil {
		return nil, nil, newError(KindConfigurationError, "authenticator is not configured")
	}

	identity, err := s.authenticator.Authenticate(ctx, creds)
	if err != nil {
		var richErr *Error
		if !goerrors.As(err, &richErr) || richErr.TextCode == "" {
			richErr = wrapAuthFailure(err)
		}
		s.logger.Info("Issue credentials rejected", "kind", KindOf(richErr), "reason", richErr.Message)
		return nil, nil, richErr
	}
	if isNilIdentity(identity) {
		return nil, nil, newError(KindAuthenticationFailed, "identity not found")
	}
	p.advance(StageCredentialsVerified)

	pair, err := s.issueTokens(ctx, p, identity, true)
	return pair, identity, err
}

// issueTokens runs the pipeline from claim building to signing.
func (s *Auther) issueTokens(ctx context.Context, p *pipeline, identity Identity, withRefresh bool) (*TokenPair, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	claims := s.builder.Build(now, identity)
	p.advance(StageClaimsBuilt)

	claims, err := s.extend(ctx, claims, identity)
	if err != nil {
		s.logger.Error("Issue payload extension failed", "error", err)
		return nil, err
	}
	p.advance(StagePayloadExtended)

	if err := s.validator.RequirePresent(claims); err != nil {
		s.logger.Error("Issue payload misses a required claim", "error", err)
		return nil, err
	}

	var refreshClaims Claims
	if withRefresh && s.cfg.GetRefreshTokenEnabled() {
		subject := claims.Subject()
		if subject == "" {
			return nil, newError(KindConfigurationError, "refresh tokens need a subject, identity has no %q attribute", s.cfg.GetUserIDKey())
		}
		refreshClaims = s.builder.BuildRefresh(now, subject)
	}

	// signing is the last step, nothing is emitted for a cancelled request
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	access, err := s.codec.Encode(claims)
	if err != nil {
		s.logger.Error("Issue failed to sign access token", "error", err)
		return nil, err
	}

	pair := &TokenPair{
		AccessToken:      access,
		ExpiresAt:        claims.Expires(),
		accessTokenName:  s.cfg.GetAccessTokenName(),
		refreshTokenName: s.cfg.GetRefreshTokenName(),
	}

	if refreshClaims != nil {
		refresh, err := s.codec.Encode(refreshClaims)
		if err != nil {
			s.logger.Error("Issue failed to sign refresh token", "error", err)
			return nil, err
		}
		if err := s.refreshStore.Store(ctx, refreshClaims.Subject(), refreshClaims.TokenID(), refreshClaims.Expires()); err != nil {
			return nil, WrapError(KindRefreshStoreError, err, "unable to store refresh token")
		}
		pair.RefreshToken = refresh
	}
	p.advance(StageTokenEncoded)

	return pair, nil
}

func (s *Auther) extend(ctx context.Context, claims Claims, identity Identity) (Claims, error) {
	extender := s.extender
	if extender == nil {
		if fromAuth, ok := s.authenticator.(PayloadExtender); ok {
			extender = fromAuth
		}
	}
	extender = normalizePayloadExtender(extender)

	extended, err := extender.ExtendPayload(ctx, claims, identity)
	if err != nil {
		var richErr *Error
		if goerrors.As(err, &richErr) && richErr.TextCode != "" {
			return nil, richErr
		}
		return nil, WrapError(KindExtensionFailed, err, "payload extension failed")
	}
	if extended == nil {
		return claims, nil
	}
	return extended, nil
}

func (s *Auther) finishIssue(ctx context.Context, p *pipeline, identity Identity, pair *TokenPair, err error, start time.Time) {
	s.metrics.Observe(OperationIssue, outcomeOf(err), s.now().Sub(start))

	if err != nil {
		richErr := p.fail(err)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventIssueFailure,
			Subject:   s.subjectOf(identity),
			Kind:      KindOf(richErr),
			Stage:     StageOf(richErr),
			Metadata:  map[string]any{"reason": richErr.Message},
		})
		return
	}

	p.advance(StageResponded)
	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventTokenIssued,
		Subject:   s.subjectOf(identity),
		Stage:     StageResponded,
		Metadata:  map[string]any{"refresh": pair.RefreshToken != ""},
	})
}

// Verify decodes and validates an access token.
func (s *Auther) Verify(ctx context.Context, token string) (Claims, error) {
	start := s.now()
	p := newPipeline(OperationVerify, s.logger)

	claims, err := s.decodeAndValidate(ctx, p, token, s.validator)

	s.metrics.Observe(OperationVerify, outcomeOf(err), s.now().Sub(start))

	if err != nil {
		richErr := p.fail(err)
		s.logger.Info("Verify rejected token", "kind", KindOf(richErr), "stage", StageOf(richErr))
		p.advance(StageRejected)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventTokenRejected,
			Kind:      KindOf(richErr),
			Stage:     StageOf(richErr),
			Metadata:  map[string]any{"reason": richErr.Message},
		})
		return nil, richErr
	}

	p.advance(StageAccepted)
	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventTokenAccepted,
		Subject:   claims.Subject(),
		TokenID:   claims.TokenID(),
		Stage:     StageAccepted,
	})
	return claims, nil
}

// Validate satisfies TokenValidator, it is an alias of Verify.
func (s *Auther) Validate(ctx context.Context, token string) (Claims, error) {
	return s.Verify(ctx, token)
}

func (s *Auther) decodeAndValidate(ctx context.Context, p *pipeline, token string, rules *ClaimsValidator) (Claims, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, err
	}
	p.advance(StageDecoded)

	if _, err := rules.Validate(claims, s.now()); err != nil {
		return nil, err
	}
	p.advance(StageValidated)

	return claims, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is returned unchanged.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	start := s.now()
	p := newPipeline(OperationRefresh, s.logger)

	pair, subject, err := s.refresh(ctx, p, refreshToken)
	s.metrics.Observe(OperationRefresh, outcomeOf(err), s.now().Sub(start))

	if err != nil {
		richErr := p.fail(err)
		s.logger.Info("Refresh rejected", "kind", KindOf(richErr), "stage", StageOf(richErr))
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventRefreshFailure,
			Subject:   subject,
			Kind:      KindOf(richErr),
			Stage:     StageOf(richErr),
			Metadata:  map[string]any{"reason": richErr.Message},
		})
		return nil, richErr
	}

	p.advance(StageResponded)
	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventTokenRefreshed,
		Subject:   subject,
		Stage:     StageResponded,
	})
	return pair, nil
}

func (s *Auther) refresh(ctx context.Context, p *pipeline, refreshToken string) (*TokenPair, string, error) {
	claims, err := s.refreshClaims(ctx, p, refreshToken)
	if err != nil {
		return nil, "", err
	}
	subject := claims.Subject()

	if s.retriever == nil {
		return nil, subject, newError(KindConfigurationError, "identity retriever is not configured")
	}

	identity, err := s.retriever.RetrieveIdentity(ctx, subject)
	if err != nil {
		var richErr *Error
		if !goerrors.As(err, &richErr) || richErr.TextCode == "" {
			richErr = wrapAuthFailure(err)
		}
		return nil, subject, richErr
	}
	if isNilIdentity(identity) {
		return nil, subject, newError(KindAuthenticationFailed, "identity not found")
	}
	p.advance(StageCredentialsVerified)

	pair, err := s.issueTokens(ctx, p, identity, false)
	if err != nil {
		return nil, subject, err
	}
	pair.RefreshToken = refreshToken

	return pair, subject, nil
}

// refreshClaims validates a refresh token and checks it is still stored.
func (s *Auther) refreshClaims(ctx context.Context, p *pipeline, refreshToken string) (Claims, error) {
	if !s.cfg.GetRefreshTokenEnabled() {
		return nil, newError(KindRefreshDisabled, "refresh tokens are disabled")
	}

	claims, err := s.decodeAndValidate(ctx, p, refreshToken, s.refreshRules)
	if err != nil {
		return nil, err
	}

	subject, tokenID := claims.Subject(), claims.TokenID()
	ok, err := s.refreshStore.Exists(ctx, subject, tokenID)
	if err != nil {
		return nil, WrapError(KindRefreshStoreError, err, "unable to look up refresh token")
	}
	if !ok {
		return nil, newError(KindRefreshTokenRevoked, "refresh token is not recognised")
	}

	return claims, nil
}

// Revoke invalidates a refresh token so it can no longer be exchanged.
func (s *Auther) Revoke(ctx context.Context, refreshToken string) error {
	start := s.now()
	p := newPipeline(OperationRevoke, s.logger)

	claims, err := s.refreshClaims(ctx, p, refreshToken)
	if err == nil {
		if rerr := s.refreshStore.Revoke(ctx, claims.Subject(), claims.TokenID()); rerr != nil {
			err = WrapError(KindRefreshStoreError, rerr, "unable to revoke refresh token")
		}
	}

	s.metrics.Observe(OperationRevoke, outcomeOf(err), s.now().Sub(start))
	if err != nil {
		return p.fail(err)
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventRefreshRevoked,
		Subject:   claims.Subject(),
		TokenID:   claims.TokenID(),
		Stage:     StageResponded,
	})
	return nil
}

func (s *Auther) subjectOf(identity Identity) string {
	if isNilIdentity(identity) || s.cfg.GetUserIDKey() == "" {
		return ""
	}
	return s.builder.subject(identity)
}

func (s *Auther) emit(ctx context.Context, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	// sinks get a context that outlives request cancellation
	if err := s.activitySink.Record(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return WrapError(KindRequestCancelled, err, "request cancelled")
	}
	return nil
}
