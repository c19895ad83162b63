// Package near provides the default NEAR-backed collaborators for the siwn
// core: an ed25519 signature verifier over the canonical sign-in message, a
// thin JSON-RPC client for access key and contract lookups, and a profile
// resolver backed by the on-chain social contract.
package near
