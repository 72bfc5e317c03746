// Package authkit provides a multi-factor authentication engine with
// argon2id password login, email verification, split-token password reset,
// TOTP and backup-code second factors, WebAuthn passkeys and security
// keys, and stateless trusted-device tokens.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config],
// the provider interfaces ([UserProvider], [WebAuthnCredentialProvider],
// [Mailer]), and value types (LoginResult, WebAuthnCredential, etc.).
// Durable account state lives behind the providers; authkit only owns the
// ephemeral ceremony state it keeps in Redis.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Store plaintext secrets: passwords, reset verifiers, and backup
//     codes are persisted only as hashes, verification tokens only as
//     digests.
//   - Reveal account existence: registration, reset, and verification
//     requests report the same outcome for known and unknown emails, and
//     login failures collapse into [ErrInvalidCredentials].
//
// # Performance contract
//
// Login is the hot path. It performs exactly one argon2id verification per
// call, known email or not, and at most two Redis round-trips. Breach
// checking happens only on registration and password change, never on
// login.
package authkit
