package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

var algorithmFamilies = map[string]string{
	"HS256": "hmac", "HS384": "hmac", "HS512": "hmac",
	"RS256": "rsa", "RS384": "rsa", "RS512": "rsa",
	"PS256": "rsa", "PS384": "rsa", "PS512": "rsa",
	"ES256": "ecdsa", "ES384": "ecdsa", "ES512": "ecdsa",
	"EDDSA": "eddsa",
}

func supportedAlgorithms() []any {
	algs := make([]any, 0, len(algorithmFamilies))
	for alg := range algorithmFamilies {
		algs = append(algs, alg)
	}
	return algs
}

func signingMethod(alg string) (jwt.SigningMethod, bool) {
	alg = strings.ToUpper(strings.TrimSpace(alg))
	if _, ok := algorithmFamilies[alg]; !ok {
		return nil, false
	}
	if alg == "EDDSA" {
		return jwt.SigningMethodEdDSA, true
	}
	method := jwt.GetSigningMethod(alg)
	return method, method != nil
}

func isHMAC(alg string) bool {
	return algorithmFamilies[strings.ToUpper(alg)] == "hmac"
}

// Codec signs claim sets into compact JWS strings and verifies them back.
// It only checks structure and signature; registered claim rules belong to
// ClaimsValidator. Key material is held opaquely and never logged.
type Codec struct {
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	keyID      string
	algorithms []string
	given      *keyfunc.JWKS
}

// NewCodec builds a codec from the signing settings of cfg.
func NewCodec(cfg Config) (*Codec, error) {
	method, ok := signingMethod(cfg.GetAlgorithm())
	if !ok {
		return nil, newError(KindEncodingError, "unsupported algorithm %q", cfg.GetAlgorithm())
	}

	algorithms := make([]string, 0, len(cfg.GetAlgorithms())+1)
	for _, alg := range cfg.GetAlgorithms() {
		m, ok := signingMethod(alg)
		if !ok {
			return nil, newError(KindEncodingError, "unsupported algorithm %q", alg)
		}
		algorithms = append(algorithms, m.Alg())
	}
	if len(algorithms) == 0 {
		algorithms = append(algorithms, method.Alg())
	}

	c := &Codec{
		method:     method,
		keyID:      cfg.GetKeyID(),
		algorithms: algorithms,
	}

	family := algorithmFamilies[strings.ToUpper(cfg.GetAlgorithm())]
	var err error
	if c.signKey, c.verifyKey, err = loadKeys(family, cfg); err != nil {
		return nil, WrapError(KindConfigurationError, err, "unable to load key material")
	}

	if verifyKeys := cfg.GetVerifyKeys(); len(verifyKeys) > 0 {
		givenKeys := make(map[string]keyfunc.GivenKey, len(verifyKeys)+1)
		for kid, raw := range verifyKeys {
			key, err := parseVerifyKey(family, raw)
			if err != nil {
				return nil, WrapError(KindConfigurationError, err, fmt.Sprintf("invalid verify key for kid %q", kid))
			}
			givenKeys[kid] = keyfunc.NewGivenCustom(key, keyfunc.GivenKeyOptions{})
		}
		if c.keyID != "" && c.verifyKey != nil {
			if _, exists := givenKeys[c.keyID]; !exists {
				givenKeys[c.keyID] = keyfunc.NewGivenCustom(c.verifyKey, keyfunc.GivenKeyOptions{})
			}
		}
		c.given = keyfunc.NewGiven(givenKeys)
	}

	return c, nil
}

// Algorithm returns the signing algorithm name.
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Encode signs claims with the configured algorithm.
func (c *Codec) Encode(claims Claims) (string, error) {
	if claims == nil {
		return "", newError(KindEncodingError, "claims must not be nil")
	}
	if c.signKey == nil {
		return "", newError(KindEncodingError, "no signing key configured for %s", c.method.Alg())
	}

	token := jwt.NewWithClaims(c.method, jwt.MapClaims(claims))
	if c.keyID != "" {
		token.Header["kid"] = c.keyID
	}

	signed, err := token.SignedString(c.signKey)
	if err != nil {
		return "", WrapError(KindEncodingError, err, "failed to sign token")
	}

	return signed, nil
}

// Decode verifies the structure and signature of raw and returns its claims.
func (c *Codec) Decode(raw string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(c.algorithms),
		jwt.WithoutClaimsValidation(),
		jwt.WithJSONNumber(),
	)

	mapClaims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(raw, mapClaims, c.resolveKey)
	if err != nil {
		return nil, decodeError(err)
	}
	if !token.Valid {
		return nil, newError(KindInvalidSignature, "token signature is invalid")
	}

	return NormalizeClaims(mapClaims), nil
}

func (c *Codec) resolveKey(t *jwt.Token) (any, error) {
	if c.given != nil {
		if _, ok := t.Header["kid"].(string); ok {
			return c.given.Keyfunc(t)
		}
	}
	if c.verifyKey == nil {
		return nil, errors.New("no verification key configured")
	}
	return c.verifyKey, nil
}

func decodeError(err error) *Error {
	if errors.Is(err, jwt.ErrTokenMalformed) {
		return WrapError(KindMalformedToken, err, "token is malformed")
	}
	return WrapError(KindInvalidSignature, err, "signature verification failed")
}

func loadKeys(family string, cfg Config) (sign any, verify any, err error) {
	if family == "hmac" {
		if cfg.GetSecret() == "" {
			return nil, nil, errors.New("secret is empty")
		}
		key := []byte(cfg.GetSecret())
		return key, key, nil
	}

	privatePEM := cfg.GetPrivateKey()
	if privatePEM == "" {
		privatePEM = cfg.GetSecret()
	}

	if privatePEM != "" {
		sign, verify, err = parsePrivateKey(family, privatePEM)
		if err != nil {
			return nil, nil, err
		}
	}

	if cfg.GetPublicKey() != "" {
		if verify, err = parseVerifyKey(family, cfg.GetPublicKey()); err != nil {
			return nil, nil, err
		}
	}

	if sign == nil && verify == nil {
		return nil, nil, errors.New("no key material")
	}

	return sign, verify, nil
}

func parsePrivateKey(family, pem string) (any, any, error) {
	switch family {
	case "rsa":
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, nil, err
		}
		return key, &key.PublicKey, nil
	case "ecdsa":
		key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, nil, err
		}
		return key, &key.PublicKey, nil
	case "eddsa":
		parsed, err := jwt.ParseEdPrivateKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, nil, err
		}
		key, ok := parsed.(ed25519.PrivateKey)
		if !ok {
			return nil, nil, errors.New("invalid ed25519 private key type")
		}
		return key, key.Public(), nil
	}
	return nil, nil, fmt.Errorf("unsupported key family %q", family)
}

func parseVerifyKey(family, raw string) (any, error) {
	var (
		key crypto.PublicKey
		err error
	)

	switch family {
	case "hmac":
		if raw == "" {
			return nil, errors.New("secret is empty")
		}
		return []byte(raw), nil
	case "rsa":
		var k *rsa.PublicKey
		k, err = jwt.ParseRSAPublicKeyFromPEM([]byte(raw))
		key = k
	case "ecdsa":
		var k *ecdsa.PublicKey
		k, err = jwt.ParseECPublicKeyFromPEM([]byte(raw))
		key = k
	case "eddsa":
		key, err = jwt.ParseEdPublicKeyFromPEM([]byte(raw))
	default:
		return nil, fmt.Errorf("unsupported key family %q", family)
	}

	if err != nil {
		return nil, err
	}
	return key, nil
}
