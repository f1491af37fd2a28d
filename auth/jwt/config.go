package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// SigningMethod defines supported JWT signing algorithms.
type SigningMethod string

const (
	HS256 SigningMethod = "HS256"
	HS384 SigningMethod = "HS384"
	HS512 SigningMethod = "HS512"
	RS256 SigningMethod = "RS256"
	RS384 SigningMethod = "RS384"
	RS512 SigningMethod = "RS512"
	ES256 SigningMethod = "ES256"
	ES384 SigningMethod = "ES384"
	ES512 SigningMethod = "ES512"
)

// Config configures token signing and verification. Keys are PEM encoded so
// they can be loaded from configuration files and the environment.
type Config struct {
	// Method is the signing algorithm (default: HS256).
	Method SigningMethod `yaml:"method" mapstructure:"method"`

	// Secret is the HMAC key for HS* methods.
	Secret string `yaml:"secret" mapstructure:"secret"`

	// PublicKeyPEM verifies RS* and ES* tokens.
	PublicKeyPEM string `yaml:"public_key_pem" mapstructure:"public_key_pem"`

	// PrivateKeyPEM signs RS* and ES* tokens. Only issuers need it.
	PrivateKeyPEM string `yaml:"private_key_pem" mapstructure:"private_key_pem"`

	// Issuer is the required "iss" claim (optional).
	Issuer string `yaml:"issuer" mapstructure:"issuer"`

	// Audience is the required "aud" claim (optional).
	Audience string `yaml:"audience" mapstructure:"audience"`

	// TokenTTL is the lifetime of issued tokens (default: 1h).
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = HS256
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = time.Hour
	}
}

// Validate checks that the keys required by the signing method are present.
func (c *Config) Validate() error {
	switch c.family() {
	case familyHMAC:
		if c.Secret == "" {
			return errors.New("secret is required for HMAC signing methods")
		}
	case familyRSA, familyECDSA:
		if c.PublicKeyPEM == "" && c.PrivateKeyPEM == "" {
			return errors.New("public or private key is required for " + string(c.Method))
		}
	default:
		return errors.New("unsupported signing method: " + string(c.Method))
	}
	return nil
}

type family int

const (
	familyUnknown family = iota
	familyHMAC
	familyRSA
	familyECDSA
)

func (c *Config) family() family {
	switch c.Method {
	case HS256, HS384, HS512:
		return familyHMAC
	case RS256, RS384, RS512:
		return familyRSA
	case ES256, ES384, ES512:
		return familyECDSA
	default:
		return familyUnknown
	}
}

// signingMethod returns the golang-jwt SigningMethod instance.
func (c *Config) signingMethod() gojwt.SigningMethod {
	if m := gojwt.GetSigningMethod(string(c.Method)); m != nil {
		return m
	}
	return gojwt.SigningMethodHS256
}

// keys parses the configured key material into the sign and verify keys.
// The sign key is nil when the service can only verify.
func (c *Config) keys() (sign, verify any, err error) {
	switch c.family() {
	case familyHMAC:
		return []byte(c.Secret), []byte(c.Secret), nil
	case familyRSA:
		if c.PrivateKeyPEM != "" {
			pk, err := gojwt.ParseRSAPrivateKeyFromPEM([]byte(c.PrivateKeyPEM))
			if err != nil {
				return nil, nil, err
			}
			sign, verify = pk, &pk.PublicKey
		}
		if c.PublicKeyPEM != "" {
			if verify, err = gojwt.ParseRSAPublicKeyFromPEM([]byte(c.PublicKeyPEM)); err != nil {
				return nil, nil, err
			}
		}
		return sign, verify, nil
	case familyECDSA:
		if c.PrivateKeyPEM != "" {
			pk, err := gojwt.ParseECPrivateKeyFromPEM([]byte(c.PrivateKeyPEM))
			if err != nil {
				return nil, nil, err
			}
			sign, verify = pk, &pk.PublicKey
		}
		if c.PublicKeyPEM != "" {
			if verify, err = gojwt.ParseECPublicKeyFromPEM([]byte(c.PublicKeyPEM)); err != nil {
				return nil, nil, err
			}
		}
		return sign, verify, nil
	default:
		return nil, nil, errors.New("unsupported signing method: " + string(c.Method))
	}
}
