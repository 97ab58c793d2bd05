package auth

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	DefaultAlgorithm              = "HS256"
	DefaultAccessTokenName        = "access_token"
	DefaultRefreshTokenName       = "refresh_token"
	DefaultExpirationDelta        = 30 * 60
	DefaultRefreshExpirationDelta = 30 * 24 * 60 * 60
	DefaultLeeway                 = 60
)

// Options holds the token settings. Build it once with NewConfig and share
// the result; nothing mutates it afterwards. Deltas are expressed in seconds.
type Options struct {
	Secret     string            `koanf:"secret" yaml:"secret"`
	PrivateKey string            `koanf:"private_key" yaml:"private_key"`
	PublicKey  string            `koanf:"public_key" yaml:"public_key"`
	Algorithm  string            `koanf:"algorithm" yaml:"algorithm"`
	Algorithms []string          `koanf:"algorithms" yaml:"algorithms"`
	KeyID      string            `koanf:"key_id" yaml:"key_id"`
	VerifyKeys map[string]string `koanf:"verify_keys" yaml:"verify_keys"`

	AccessTokenName  string `koanf:"access_token_name" yaml:"access_token_name"`
	RefreshTokenName string `koanf:"refresh_token_name" yaml:"refresh_token_name"`

	ExpirationDelta        int  `koanf:"expiration_delta" yaml:"expiration_delta"`
	RefreshExpirationDelta int  `koanf:"refresh_expiration_delta" yaml:"refresh_expiration_delta"`
	RefreshTokenEnabled    bool `koanf:"refresh_token_enabled" yaml:"refresh_token_enabled"`

	ClaimNotBefore bool     `koanf:"claim_nbf" yaml:"claim_nbf"`
	NotBeforeDelta int      `koanf:"claim_nbf_delta" yaml:"claim_nbf_delta"`
	ClaimIssuedAt  *bool    `koanf:"claim_iat" yaml:"claim_iat"`
	ClaimTokenID   bool     `koanf:"claim_jti" yaml:"claim_jti"`
	Issuer         string   `koanf:"claim_iss" yaml:"claim_iss"`
	Audience       string   `koanf:"claim_aud" yaml:"claim_aud"`
	Leeway         int      `koanf:"leeway" yaml:"leeway"`
	RequiredClaims []string `koanf:"required_claims" yaml:"required_claims"`
	UserIDKey      string   `koanf:"user_id" yaml:"user_id"`
}

var _ Config = (*Options)(nil)

// NewConfig applies defaults, validates the options and returns an
// independent copy.
func NewConfig(opts Options) (*Options, error) {
	cfg := opts.clone()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, WrapError(KindConfigurationError, err, "invalid configuration")
	}

	return cfg, nil
}

func (o *Options) applyDefaults() {
	o.Algorithm = strings.ToUpper(strings.TrimSpace(o.Algorithm))
	if o.Algorithm == "" {
		o.Algorithm = DefaultAlgorithm
	}
	if len(o.Algorithms) == 0 {
		o.Algorithms = []string{o.Algorithm}
	}
	for i, alg := range o.Algorithms {
		o.Algorithms[i] = strings.ToUpper(strings.TrimSpace(alg))
	}
	if o.AccessTokenName == "" {
		o.AccessTokenName = DefaultAccessTokenName
	}
	if o.RefreshTokenName == "" {
		o.RefreshTokenName = DefaultRefreshTokenName
	}
	if o.ExpirationDelta == 0 {
		o.ExpirationDelta = DefaultExpirationDelta
	}
	if o.RefreshExpirationDelta == 0 {
		o.RefreshExpirationDelta = DefaultRefreshExpirationDelta
	}
	if o.ClaimIssuedAt == nil {
		o.ClaimIssuedAt = Bool(true)
	}
	if o.Leeway == 0 {
		o.Leeway = DefaultLeeway
	}
	// a negative leeway disables tolerance
	if o.Leeway < 0 {
		o.Leeway = 0
	}
}

// Validate checks the options for consistency.
func (o *Options) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.Algorithm, validation.Required, validation.In(supportedAlgorithms()...)),
		validation.Field(&o.Algorithms, validation.By(algorithmsRule)),
		validation.Field(&o.Secret, validation.By(o.secretRule)),
		validation.Field(&o.PrivateKey, validation.By(o.privateKeyRule)),
		validation.Field(&o.AccessTokenName, validation.Required),
		validation.Field(&o.ExpirationDelta, validation.Min(1)),
		validation.Field(&o.RefreshExpirationDelta, validation.Min(1)),
		validation.Field(&o.NotBeforeDelta, validation.Min(0)),
		validation.Field(&o.UserIDKey, validation.By(o.userIDRule)),
		validation.Field(&o.RefreshTokenName, validation.By(o.refreshNameRule)),
	)
}

func algorithmsRule(value any) error {
	algs, _ := value.([]string)
	for _, alg := range algs {
		if _, ok := signingMethod(alg); !ok {
			return errors.New("unsupported algorithm " + alg)
		}
	}
	return nil
}

func (o *Options) secretRule(value any) error {
	if isHMAC(o.Algorithm) && o.Secret == "" {
		return errors.New("secret is required for " + o.Algorithm)
	}
	return nil
}

func (o *Options) privateKeyRule(value any) error {
	if !isHMAC(o.Algorithm) && o.PrivateKey == "" && o.Secret == "" && o.PublicKey == "" {
		return errors.New("key material is required for " + o.Algorithm)
	}
	return nil
}

func (o *Options) userIDRule(value any) error {
	if o.RefreshTokenEnabled && o.UserIDKey == "" {
		return errors.New("user_id is required when refresh tokens are enabled")
	}
	return nil
}

func (o *Options) refreshNameRule(value any) error {
	if o.RefreshTokenEnabled && o.RefreshTokenName == o.AccessTokenName {
		return errors.New("refresh token name must differ from access token name")
	}
	return nil
}

func (o Options) clone() *Options {
	c := o
	if o.ClaimIssuedAt != nil {
		c.ClaimIssuedAt = Bool(*o.ClaimIssuedAt)
	}
	if o.Algorithms != nil {
		c.Algorithms = append([]string(nil), o.Algorithms...)
	}
	if o.RequiredClaims != nil {
		c.RequiredClaims = append([]string(nil), o.RequiredClaims...)
	}
	if o.VerifyKeys != nil {
		c.VerifyKeys = make(map[string]string, len(o.VerifyKeys))
		for k, v := range o.VerifyKeys {
			c.VerifyKeys[k] = v
		}
	}
	return &c
}

// Bool returns a pointer to v, for the optional switches of Options.
func Bool(v bool) *bool {
	return &v
}

func (o *Options) GetSecret() string     { return o.Secret }
func (o *Options) GetPrivateKey() string { return o.PrivateKey }
func (o *Options) GetPublicKey() string  { return o.PublicKey }
func (o *Options) GetAlgorithm() string  { return o.Algorithm }
func (o *Options) GetKeyID() string      { return o.KeyID }
func (o *Options) GetIssuer() string     { return o.Issuer }
func (o *Options) GetAudience() string   { return o.Audience }
func (o *Options) GetUserIDKey() string  { return o.UserIDKey }

func (o *Options) GetAlgorithms() []string {
	return append([]string(nil), o.Algorithms...)
}

func (o *Options) GetVerifyKeys() map[string]string {
	return o.clone().VerifyKeys
}

func (o *Options) GetAccessTokenName() string  { return o.AccessTokenName }
func (o *Options) GetRefreshTokenName() string { return o.RefreshTokenName }

func (o *Options) GetAccessTokenTTL() time.Duration {
	return time.Duration(o.ExpirationDelta) * time.Second
}

func (o *Options) GetRefreshTokenTTL() time.Duration {
	return time.Duration(o.RefreshExpirationDelta) * time.Second
}

func (o *Options) GetRefreshTokenEnabled() bool { return o.RefreshTokenEnabled }
func (o *Options) GetClaimNotBefore() bool      { return o.ClaimNotBefore }
func (o *Options) GetClaimIssuedAt() bool       { return o.ClaimIssuedAt == nil || *o.ClaimIssuedAt }
func (o *Options) GetClaimTokenID() bool        { return o.ClaimTokenID }

func (o *Options) GetNotBeforeDelta() time.Duration {
	return time.Duration(o.NotBeforeDelta) * time.Second
}

func (o *Options) GetLeeway() time.Duration {
	return time.Duration(o.Leeway) * time.Second
}

func (o *Options) GetRequiredClaims() []string {
	return append([]string(nil), o.RequiredClaims...)
}
