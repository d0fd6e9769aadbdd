package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
)

const (
	// RecordSize is the rs header field. Push services are not required to
	// accept anything larger; Apple does not.
	RecordSize = 4096

	saltLen       = 16
	authSecretLen = 16
	headerLen     = saltLen + 4 + 1 + publicKeyLen

	// header + padding delimiter + AES-GCM tag
	minOverhead = headerLen + 1 + 16

	// MaxPlaintext is the largest payload that fits in one record.
	MaxPlaintext = RecordSize - minOverhead
)

var (
	webPushInfo    = []byte("WebPush: info\x00")
	contentKeyInfo = []byte("Content-Encoding: aes128gcm\x00")
	nonceInfo      = []byte("Content-Encoding: nonce\x00")
)

// Keys are the base64url values from the browser's PushSubscription.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is one browser endpoint able to receive push messages.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     Keys   `json:"keys"`
}

// subscriberKeys is a Subscription after validation.
type subscriberKeys struct {
	publicKey  *ecdh.PublicKey
	raw        []byte
	authSecret []byte
}

// Validate checks that the endpoint is present and both keys decode to their
// expected lengths.
func (s Subscription) Validate() error {
	_, err := validated(s)
	return err
}

// randReader feeds the ephemeral key and salt.
var randReader io.Reader = rand.Reader

func decodeKeys(p256dh, auth string) (*subscriberKeys, error) {
	if p256dh == "" || auth == "" {
		return nil, &InvalidSubscriptionError{Reason: "missing keys"}
	}
	raw, err := Decode(p256dh)
	if err != nil {
		return nil, &InvalidSubscriptionError{Reason: "p256dh", Err: err}
	}
	if len(raw) != publicKeyLen {
		return nil, &InvalidSubscriptionError{Reason: fmt.Sprintf("p256dh is %d bytes, want %d", len(raw), publicKeyLen)}
	}
	secret, err := Decode(auth)
	if err != nil {
		return nil, &InvalidSubscriptionError{Reason: "auth", Err: err}
	}
	if len(secret) != authSecretLen {
		return nil, &InvalidSubscriptionError{Reason: fmt.Sprintf("auth is %d bytes, want %d", len(secret), authSecretLen)}
	}
	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, &InvalidSubscriptionError{Reason: "p256dh is not a P-256 point", Err: err}
	}
	return &subscriberKeys{publicKey: pub, raw: raw, authSecret: secret}, nil
}

// Encrypt produces an aes128gcm body for plaintext addressed to the
// subscriber owning p256dh and auth. Every call draws a new ephemeral key pair
// and a new salt.
func Encrypt(plaintext []byte, p256dh, auth string) ([]byte, error) {
	keys, err := decodeKeys(p256dh, auth)
	if err != nil {
		return nil, err
	}
	if len(plaintext) > MaxPlaintext {
		return nil, &EncryptionError{Op: "size", Err: fmt.Errorf("payload of %d bytes exceeds %d", len(plaintext), MaxPlaintext)}
	}
	return encrypt(plaintext, keys, randReader)
}

func encrypt(plaintext []byte, keys *subscriberKeys, random io.Reader) ([]byte, error) {
	ephemeral, err := ecdh.P256().GenerateKey(random)
	if err != nil {
		return nil, &EncryptionError{Op: "generate ephemeral key", Err: err}
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(random, salt); err != nil {
		return nil, &EncryptionError{Op: "salt", Err: err}
	}
	return seal(plaintext, keys, ephemeral, salt)
}

// seal encrypts plaintext as a single aes128gcm record under a given
// ephemeral key and salt.
func seal(plaintext []byte, keys *subscriberKeys, ephemeral *ecdh.PrivateKey, salt []byte) ([]byte, error) {
	ephemeralPub := ephemeral.PublicKey().Bytes()

	sharedSecret, err := ephemeral.ECDH(keys.publicKey)
	if err != nil {
		return nil, &EncryptionError{Op: "ecdh", Err: err}
	}

	ikm, err := DeriveKey(sharedSecret, keys.authSecret, slices.Concat(webPushInfo, keys.raw, ephemeralPub), 32)
	if err != nil {
		return nil, &EncryptionError{Op: "derive ikm", Err: err}
	}
	cek, err := DeriveKey(ikm, salt, contentKeyInfo, 16)
	if err != nil {
		return nil, &EncryptionError{Op: "derive content key", Err: err}
	}
	nonce, err := DeriveKey(ikm, salt, nonceInfo, 12)
	if err != nil {
		return nil, &EncryptionError{Op: "derive nonce", Err: err}
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, &EncryptionError{Op: "create cipher", Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &EncryptionError{Op: "create gcm", Err: err}
	}

	record := make([]byte, 0, headerLen+len(plaintext)+1+gcm.Overhead())
	record = append(record, salt...)
	record = binary.BigEndian.AppendUint32(record, RecordSize)
	record = append(record, byte(len(ephemeralPub)))
	record = append(record, ephemeralPub...)

	padded := make([]byte, 0, len(plaintext)+1)
	padded = append(padded, plaintext...)
	padded = append(padded, 0x02) // last record, no padding

	return gcm.Seal(record, nonce, padded, nil), nil
}
