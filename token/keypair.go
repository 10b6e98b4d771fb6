package token

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/bluecollar-client/internal/errors"
	"github.com/pkg/errors"
)

// Supported signing algorithms.
const (
	AlgHS256 = "HS256"
	AlgRS256 = "RS256"
	AlgES256 = "ES256"
)

// KeyPair is an asymmetric signing key
type KeyPair struct {
	KeyID      string
	Algorithm  string
	PrivateKey crypto.Signer
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"`           // Key type (RSA, EC)
	Use string `json:"use,omitempty"` // sig or enc
	Kid string `json:"kid,omitempty"` // Key ID
	Alg string `json:"alg,omitempty"` // Algorithm

	// RSA specific
	N string `json:"n,omitempty"` // Modulus
	E string `json:"e,omitempty"` // Exponent

	// EC specific
	Crv string `json:"crv,omitempty"` // Curve
	X   string `json:"x,omitempty"`   // X coordinate
	Y   string `json:"y,omitempty"`   // Y coordinate
}

// GenerateKeyPair creates a fresh RS256 or ES256 key.
func GenerateKeyPair(keyID, algorithm string) (*KeyPair, error) {
	var (
		key crypto.Signer
		err error
	)
	switch algorithm {
	case AlgRS256:
		key, err = rsa.GenerateKey(rand.Reader, 2048)
	case AlgES256:
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	default:
		return nil, errors.Errorf("unsupported key algorithm %q", algorithm)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate %s key", algorithm)
	}
	return &KeyPair{KeyID: keyID, Algorithm: algorithm, PrivateKey: key}, nil
}

func (kp *KeyPair) signingMethod() jwt.SigningMethod {
	if kp.Algorithm == AlgES256 {
		return jwt.SigningMethodES256
	}
	return jwt.SigningMethodRS256
}

// JWK converts the public half to JWK format
func (kp *KeyPair) JWK() (JWK, error) {
	jwk := JWK{
		Kid: kp.KeyID,
		Use: "sig",
		Alg: kp.Algorithm,
	}

	switch pubKey := kp.PrivateKey.Public().(type) {
	case *rsa.PublicKey:
		jwk.Kty = "RSA"
		jwk.N = base64.RawURLEncoding.EncodeToString(pubKey.N.Bytes())
		jwk.E = base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pubKey.E)).Bytes())
	case *ecdsa.PublicKey:
		ecdhKey, err := pubKey.ECDH()
		if err != nil {
			return JWK{}, errors.Wrap(err, "failed to convert EC public key")
		}
		// uncompressed point: 0x04 || X || Y
		point := ecdhKey.Bytes()
		size := (len(point) - 1) / 2
		jwk.Kty = "EC"
		jwk.Crv = "P-256"
		jwk.X = base64.RawURLEncoding.EncodeToString(point[1 : 1+size])
		jwk.Y = base64.RawURLEncoding.EncodeToString(point[1+size:])
	default:
		return JWK{}, errors.New("unsupported public key type")
	}
	return jwk, nil
}

// KeyPairSigner signs access credentials with an asymmetric key and stamps
// the key id in the header.
type KeyPairSigner struct {
	keyPair *KeyPair
}

var _ Signer = (*KeyPairSigner)(nil)

func NewKeyPairSigner(keyPair *KeyPair) *KeyPairSigner {
	return &KeyPairSigner{keyPair: keyPair}
}

func (s *KeyPairSigner) Sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(s.keyPair.signingMethod(), claims)
	token.Header["kid"] = s.keyPair.KeyID
	signedToken, err := token.SignedString(s.keyPair.PrivateKey)
	if err != nil {
		return "", errors.Wrapf(err, "failed to sign token with %s", s.keyPair.Algorithm)
	}
	return signedToken, nil
}

func (s *KeyPairSigner) Verify(rawToken string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(*jwt.Token) (interface{}, error) {
		return s.keyPair.PrivateKey.Public(), nil
	}, jwt.WithValidMethods([]string{s.keyPair.Algorithm}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}
	if !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// JWKS publishes the verification key
func (s *KeyPairSigner) JWKS() (JWKS, error) {
	jwk, err := s.keyPair.JWK()
	if err != nil {
		return JWKS{}, err
	}
	return JWKS{Keys: []JWK{jwk}}, nil
}

// NewSigner builds a signer for algorithm. HS256 signs with secret; the
// asymmetric algorithms generate a key identified by keyID.
func NewSigner(algorithm, secret, keyID string) (Signer, error) {
	switch algorithm {
	case "", AlgHS256:
		if secret == "" {
			return nil, errors.New("HS256 signer needs a secret")
		}
		return NewHMACSigner(secret), nil
	default:
		keyPair, err := GenerateKeyPair(keyID, algorithm)
		if err != nil {
			return nil, err
		}
		return NewKeyPairSigner(keyPair), nil
	}
}
