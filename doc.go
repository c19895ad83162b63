// Package siwn implements Sign-In With NEAR: a challenge-response
// authentication flow that binds a NEAR account keypair to a web session,
// plus linking and unlinking of multiple NEAR accounts per user.
//
// The flow is: issue a single-use nonce for an account, have the client sign
// the canonical message off-device, verify the signature server side, resolve
// or create the owning user, and issue a JWT session. Linking reuses the same
// verification core with an active session; unlinking performs safety checks
// only.
//
// The signature primitive and profile lookups are pluggable collaborators
// (SignatureVerifier, ProfileResolver); a default NEAR implementation lives
// in the near subpackage. Persistence goes through RepositoryManager, with
// bun-backed repositories in the repository subpackage.
package siwn
