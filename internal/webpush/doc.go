// Package webpush encrypts and delivers Web Push messages.
//
// Message Encryption for Web Push
// https://www.rfc-editor.org/rfc/rfc8291.html
//
// Voluntary Application Server Identification (VAPID) for Web Push
// https://www.rfc-editor.org/rfc/rfc8292
//
// HMAC-based Extract-and-Expand Key Derivation Function (HKDF)
// https://www.rfc-editor.org/rfc/rfc5869
//
// The package depends only on the standard crypto primitives (ECDH, ECDSA
// P-256, AES-GCM, HMAC-SHA-256); it does not wrap a third-party Web Push
// client.
package webpush
