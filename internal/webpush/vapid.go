package webpush

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenLifetime is how long a VAPID token stays valid after signing.
	TokenLifetime = 12 * time.Hour

	publicKeyLen  = 65
	privateKeyLen = 32
)

// KeyPair is the sender's VAPID identity as raw base64url key material.
type KeyPair struct {
	PublicKey  string // 65-byte uncompressed P-256 point
	PrivateKey string // 32-byte P-256 scalar
	Subject    string // mailto: or https: contact URI
}

// GenerateKeyPair creates a fresh P-256 key pair encoded the way KeyPair
// expects it.
func GenerateKeyPair(subject string) (KeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate ECDSA key: %w", err)
	}
	priv, err := key.Bytes()
	if err != nil {
		return KeyPair{}, fmt.Errorf("encode private key: %w", err)
	}
	pub, err := key.PublicKey.Bytes()
	if err != nil {
		return KeyPair{}, fmt.Errorf("encode public key: %w", err)
	}
	return KeyPair{
		PublicKey:  Encode(pub),
		PrivateKey: Encode(priv),
		Subject:    subject,
	}, nil
}

// Signer produces VAPID tokens for one key pair. The key is parsed once, so a
// Signer is meant to live for the whole process.
type Signer struct {
	keys KeyPair
	key  *ecdsa.PrivateKey
	now  func() time.Time
}

// NewSigner rebuilds a signing key from the raw scalar and public point in
// keys. The public point must belong to the scalar.
func NewSigner(keys KeyPair) (*Signer, error) {
	key, err := parsePrivateKey(keys.PublicKey, keys.PrivateKey)
	if err != nil {
		return nil, err
	}
	if keys.Subject == "" {
		return nil, &SigningError{Op: "subject", Err: errors.New("subject is required")}
	}
	return &Signer{keys: keys, key: key, now: time.Now}, nil
}

func parsePrivateKey(publicKey, privateKey string) (*ecdsa.PrivateKey, error) {
	pub, err := Decode(publicKey)
	if err != nil {
		return nil, &SigningError{Op: "decode public key", Err: err}
	}
	if len(pub) != publicKeyLen || pub[0] != 0x04 {
		return nil, &SigningError{Op: "decode public key", Err: fmt.Errorf("want %d-byte uncompressed point, got %d bytes", publicKeyLen, len(pub))}
	}
	d, err := Decode(privateKey)
	if err != nil {
		return nil, &SigningError{Op: "decode private key", Err: err}
	}
	if len(d) != privateKeyLen {
		return nil, &SigningError{Op: "decode private key", Err: fmt.Errorf("want %d-byte scalar, got %d bytes", privateKeyLen, len(d))}
	}

	key, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), d)
	if err != nil {
		return nil, &SigningError{Op: "import private key", Err: err}
	}
	// X = pub[1:33], Y = pub[33:65]
	stated, err := ecdsa.ParseUncompressedPublicKey(elliptic.P256(), pub)
	if err != nil {
		return nil, &SigningError{Op: "import public key", Err: err}
	}
	if !key.PublicKey.Equal(stated) {
		return nil, &SigningError{Op: "import key pair", Err: errors.New("public key does not match private key")}
	}
	return key, nil
}

// PublicKey returns the base64url public key sent as the k= parameter.
func (s *Signer) PublicKey() string {
	return s.keys.PublicKey
}

// Sign returns a compact ES256 JWT with aud set to audience, sub set to the
// key pair's subject and exp TokenLifetime from now. The signature is the raw
// 64-byte r || s form.
func (s *Signer) Sign(audience string) (string, error) {
	if audience == "" {
		return "", &SigningError{Op: "audience", Err: errors.New("audience is required")}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"aud": audience,
		"exp": s.now().Add(TokenLifetime).Unix(),
		"sub": s.keys.Subject,
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", &SigningError{Op: "sign", Err: err}
	}
	return signed, nil
}

// Authorization returns the RFC 8292 header value for a request to audience.
func (s *Signer) Authorization(audience string) (string, error) {
	token, err := s.Sign(audience)
	if err != nil {
		return "", err
	}
	return "vapid t=" + token + ", k=" + s.keys.PublicKey, nil
}

// Sign is a one-shot helper that builds a Signer for keys, overriding its
// subject, and signs a token for audience.
func Sign(audience, subject string, keys KeyPair) (string, error) {
	keys.Subject = subject
	s, err := NewSigner(keys)
	if err != nil {
		return "", err
	}
	return s.Sign(audience)
}

// Audience returns scheme://host of a push endpoint, the only value a push
// service accepts as the token's aud claim.
func Audience(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no scheme or host", endpoint)
	}
	return strings.ToLower(u.Scheme) + "://" + u.Host, nil
}
