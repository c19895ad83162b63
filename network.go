package siwn

import (
	"regexp"
	"strings"
)

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64
)

// NEAR account id grammar: lowercase alphanumeric parts separated by a
// single - _ or . with no leading/trailing separators.
var accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

// NetworkForAccount derives the network from the account id suffix. The
// network is never taken from client input; any caller supplied networkId
// must match this value.
func NetworkForAccount(accountID string) Network {
	if strings.HasSuffix(accountID, ".testnet") {
		return NetworkTestnet
	}
	return NetworkMainnet
}

// ParseNetwork parses a client supplied network string.
func ParseNetwork(s string) (Network, bool) {
	switch Network(strings.ToLower(strings.TrimSpace(s))) {
	case NetworkMainnet:
		return NetworkMainnet, true
	case NetworkTestnet:
		return NetworkTestnet, true
	}
	return "", false
}

// ValidateAccountID checks a NEAR account id against the protocol grammar.
func ValidateAccountID(accountID string) error {
	if len(accountID) < minAccountIDLen || len(accountID) > maxAccountIDLen {
		return ErrInvalidAccountID
	}

	if !accountIDPattern.MatchString(accountID) {
		return ErrInvalidAccountID
	}

	return nil
}

// EnsureNetwork validates an optional caller supplied networkId against the
// network derived from the account id.
func EnsureNetwork(accountID, networkID string) (Network, error) {
	derived := NetworkForAccount(accountID)
	if networkID == "" {
		return derived, nil
	}

	requested, ok := ParseNetwork(networkID)
	if !ok || requested != derived {
		return "", ErrNetworkMismatch
	}

	return derived, nil
}
