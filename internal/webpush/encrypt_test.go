package webpush

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient stands in for a browser: it owns the subscription's private key
// and auth secret.
type testClient struct {
	priv *ecdh.PrivateKey
	auth []byte
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return &testClient{priv: priv, auth: auth}
}

func (c *testClient) keys() Keys {
	return Keys{P256dh: Encode(c.priv.PublicKey().Bytes()), Auth: Encode(c.auth)}
}

// decrypt reverses the aes128gcm encoding with the client's private key and
// strips the padding delimiter.
func (c *testClient) decrypt(t *testing.T, body []byte) []byte {
	t.Helper()
	require.Greater(t, len(body), headerLen)

	salt := body[:16]
	rs := binary.BigEndian.Uint32(body[16:20])
	require.Equal(t, uint32(4096), rs)
	idlen := int(body[20])
	require.Equal(t, 65, idlen)
	serverPub := body[21 : 21+idlen]
	ciphertext := body[21+idlen:]

	pub, err := ecdh.P256().NewPublicKey(serverPub)
	require.NoError(t, err)
	shared, err := c.priv.ECDH(pub)
	require.NoError(t, err)

	info := slices.Concat([]byte("WebPush: info\x00"), c.priv.PublicKey().Bytes(), serverPub)
	ikm, err := DeriveKey(shared, c.auth, info, 32)
	require.NoError(t, err)
	cek, err := DeriveKey(ikm, salt, []byte("Content-Encoding: aes128gcm\x00"), 16)
	require.NoError(t, err)
	nonce, err := DeriveKey(ikm, salt, []byte("Content-Encoding: nonce\x00"), 12)
	require.NoError(t, err)

	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	padded, err := gcm.Open(nil, nonce, ciphertext, nil)
	require.NoError(t, err)

	require.NotEmpty(t, padded)
	require.Equal(t, byte(0x02), padded[len(padded)-1])
	return padded[:len(padded)-1]
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	client := newTestClient(t)
	keys := client.keys()
	plaintext := []byte(`{"title":"Husk at registrere timer","body":"Du har kun registreret 2,5 timer i dag."}`)

	body, err := Encrypt(plaintext, keys.P256dh, keys.Auth)
	require.NoError(t, err)

	// header + ciphertext + delimiter + tag
	assert.Len(t, body, headerLen+len(plaintext)+1+16)
	assert.Equal(t, plaintext, client.decrypt(t, body))
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	client := newTestClient(t)
	keys := client.keys()

	body, err := Encrypt(nil, keys.P256dh, keys.Auth)
	require.NoError(t, err)
	assert.Empty(t, client.decrypt(t, body))
}

func TestEncryptFreshness(t *testing.T) {
	client := newTestClient(t)
	keys := client.keys()
	plaintext := []byte(`{"title":"Test","body":"Hej"}`)

	a, err := Encrypt(plaintext, keys.P256dh, keys.Auth)
	require.NoError(t, err)
	b, err := Encrypt(plaintext, keys.P256dh, keys.Auth)
	require.NoError(t, err)

	assert.False(t, bytes.Equal(a[:16], b[:16]), "salt reused")
	assert.False(t, bytes.Equal(a[21:86], b[21:86]), "ephemeral key reused")
	assert.False(t, bytes.Equal(a[86:], b[86:]), "ciphertext repeated")

	assert.Equal(t, plaintext, client.decrypt(t, a))
	assert.Equal(t, plaintext, client.decrypt(t, b))
}

func TestEncryptWrongClientCannotDecrypt(t *testing.T) {
	client := newTestClient(t)
	keys := client.keys()
	body, err := Encrypt([]byte("secret"), keys.P256dh, keys.Auth)
	require.NoError(t, err)

	intruder := newTestClient(t)
	intruder.auth = client.auth

	pub, err := ecdh.P256().NewPublicKey(body[21:86])
	require.NoError(t, err)
	shared, err := intruder.priv.ECDH(pub)
	require.NoError(t, err)
	info := slices.Concat(webPushInfo, intruder.priv.PublicKey().Bytes(), body[21:86])
	ikm, err := DeriveKey(shared, intruder.auth, info, 32)
	require.NoError(t, err)
	cek, err := DeriveKey(ikm, body[:16], contentKeyInfo, 16)
	require.NoError(t, err)
	nonce, err := DeriveKey(ikm, body[:16], nonceInfo, 12)
	require.NoError(t, err)
	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	_, err = gcm.Open(nil, nonce, body[86:], nil)
	assert.Error(t, err)
}

func TestEncryptRejectsInvalidKeys(t *testing.T) {
	client := newTestClient(t)
	good := client.keys()

	cases := []struct {
		name   string
		p256dh string
		auth   string
	}{
		{"missing p256dh", "", good.Auth},
		{"missing auth", good.P256dh, ""},
		{"short p256dh", Encode(make([]byte, 64)), good.Auth},
		{"short auth", good.P256dh, Encode(make([]byte, 12))},
		{"garbage p256dh", "%%%", good.Auth},
		{"off-curve p256dh", Encode(append([]byte{0x04}, make([]byte, 64)...)), good.Auth},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Encrypt([]byte("x"), c.p256dh, c.auth)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSubscription)
			assert.NotErrorIs(t, err, ErrEncryption)
		})
	}
}

func TestEncryptRejectsOversizedPayload(t *testing.T) {
	keys := newTestClient(t).keys()

	_, err := Encrypt(make([]byte, MaxPlaintext), keys.P256dh, keys.Auth)
	require.NoError(t, err)

	_, err = Encrypt(make([]byte, MaxPlaintext+1), keys.P256dh, keys.Auth)
	assert.ErrorIs(t, err, ErrEncryption)
}

// RFC 8291 Appendix A.
func TestSealKnownAnswer(t *testing.T) {
	const (
		serverPrivate = "yfWPiYE-n46HLnH0KqZOF1fJJU3MYrct3AELtAQ-oRw"
		clientPublic  = "BCVxsr7N_eNgVRqvHtD0zTZsEc6-VV-JvLexhqUzORcxaOzi6-AYWXvTBHm4bjyPjs7Vd8pZGH6SRpkNtoIAiw4"
		authSecret    = "BTBZMqHH6r4Tts7J_aSIgg"
		salt          = "DGv6ra1nlYgDCS1FRnbzlw"
		want          = "DGv6ra1nlYgDCS1FRnbzlwAAEABBBP4z9KsN6nGRTbVYI_c7VJSPQTBtkgcy27mlmlMoZIIgDll6e3vCYLocInmYWAmS6TlzAC8wEqKK6PBru3jl7A_yl95bQpu6cVPTpK4Mqgkf1CXztLVBSt2Ks3oZwbuwXPXLWyouBWLVWGNWQexSgSxsj_Qulcy4a-fN"
	)

	privBytes, err := Decode(serverPrivate)
	require.NoError(t, err)
	ephemeral, err := ecdh.P256().NewPrivateKey(privBytes)
	require.NoError(t, err)
	saltBytes, err := Decode(salt)
	require.NoError(t, err)
	keys, err := decodeKeys(clientPublic, authSecret)
	require.NoError(t, err)

	body, err := seal([]byte("When I grow up, I want to be a watermelon"), keys, ephemeral, saltBytes)
	require.NoError(t, err)
	assert.Equal(t, want, Encode(body))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, assert.AnError }

func TestEncryptRandomnessFailure(t *testing.T) {
	client := newTestClient(t)
	keys, err := decodeKeys(client.keys().P256dh, client.keys().Auth)
	require.NoError(t, err)

	_, err = encrypt([]byte("x"), keys, failingReader{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncryption)
}

func TestSubscriptionValidate(t *testing.T) {
	keys := newTestClient(t).keys()

	assert.NoError(t, Subscription{Endpoint: "https://push.example.com/x", Keys: keys}.Validate())
	assert.ErrorIs(t, Subscription{Keys: keys}.Validate(), ErrInvalidSubscription)
	assert.ErrorIs(t, Subscription{Endpoint: "not a url", Keys: keys}.Validate(), ErrInvalidSubscription)
	assert.ErrorIs(t, Subscription{Endpoint: "https://push.example.com/x"}.Validate(), ErrInvalidSubscription)
}
