// Package internal contains helper utilities that are intentionally private
// to authkit: secure random token generation and the digest form of
// single-use tokens.
//
// # What this package must NOT do
//
//   - Export types that appear in the public authkit API.
//   - Be imported by any package outside the authkit module.
package internal
