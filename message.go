package siwn

import "fmt"

// SignInMessage builds the canonical sign-in message a wallet signs for a
// given recipient, account, and nonce. Verifiers rebuild this exact string
// before checking the signature, so the format is load bearing.
func SignInMessage(recipient, accountID, nonce string) string {
	return fmt.Sprintf("Sign in to %s\n\nAccount ID: %s\nNonce: %s", recipient, accountID, nonce)
}
