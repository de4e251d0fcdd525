// Package auth issues and verifies the HS256 bearer tokens that protect
// record writes on the HTTP API.
//
// Tokens carry a subject and a role. A viewer may read; an operator may also
// write and process records. Tokens are minted offline with
// "busmapd token <subject> [role]" using the configured secret.
package auth
